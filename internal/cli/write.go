// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/usbarmory/fwselect/internal/hostimage"
)

var errMissingRequiredFlag = errors.New("missing required flag")

func writeCommand() *Command {
	flags := flag.NewFlagSet("write", flag.ContinueOnError)

	bootloaderPath := flags.String("bootloader-path", "", "path to the bootloader payload (required)")
	image1Path := flags.String("image-1-path", "", "path to the slot 0 image payload (required)")
	image2Path := flags.String("image-2-path", "", "path to the slot 1 image payload (default: copy of image 1)")
	image3Path := flags.String("image-3-path", "", "path to the slot 2 image payload (default: copy of image 1)")
	outputPath := flags.String("output-path", "", "path the assembled 2 MiB image is written to (required)")
	manifestPath := flags.String("manifest-path", "", "HUJSON build manifest (the flags above override it where set)")
	preferredImage := flags.Uint32("preferred-image", 0, "slot index (0-2) to prefer on boot")

	return &Command{
		Flags: flags,
		Usage: "write --bootloader-path PATH --image-1-path PATH [--image-2-path PATH] [--image-3-path PATH] --output-path PATH",
		Short: "Assemble a 2 MiB flash image from a bootloader and up to three firmware images.",
		Exec: func(o *IO, _ []string) error {
			in, out, err := resolveWriteInputs(*manifestPath, writeFlags{
				bootloaderPath: *bootloaderPath,
				image1Path:     *image1Path,
				image2Path:     *image2Path,
				image3Path:     *image3Path,
				outputPath:     *outputPath,
				preferredImage: *preferredImage,
			})
			if err != nil {
				return err
			}

			if err := hostimage.Write(out, in); err != nil {
				return err
			}

			o.printf("wrote %s\n", out)

			return nil
		},
	}
}

type writeFlags struct {
	bootloaderPath string
	image1Path     string
	image2Path     string
	image3Path     string
	outputPath     string
	preferredImage uint32
}

// resolveWriteInputs merges a HUJSON manifest (when given) with the
// flags above, a non-empty flag taking precedence over the manifest
// field and the manifest filling any field the flags leave empty, and
// reads every referenced payload off disk. A preferred image of 0 from
// the flags counts as unset, so a nonzero manifest preferred_image is
// used even when --preferred-image 0 is given.
func resolveWriteInputs(manifestPath string, f writeFlags) (hostimage.Inputs, string, error) {
	var man manifest

	if manifestPath != "" {
		loaded, err := loadManifest(manifestPath)
		if err != nil {
			return hostimage.Inputs{}, "", fmt.Errorf("loading manifest: %w", err)
		}

		man = loaded
	}

	bootloaderPath := firstNonEmpty(f.bootloaderPath, man.BootloaderPath)
	image1Path := firstNonEmpty(f.image1Path, man.Image1Path)
	image2Path := firstNonEmpty(f.image2Path, man.Image2Path)
	image3Path := firstNonEmpty(f.image3Path, man.Image3Path)
	outputPath := firstNonEmpty(f.outputPath, man.OutputPath)

	preferredImage := f.preferredImage
	if preferredImage == 0 && man.PreferredImage != 0 {
		preferredImage = man.PreferredImage
	}

	if bootloaderPath == "" {
		return hostimage.Inputs{}, "", fmt.Errorf("%w: --bootloader-path", errMissingRequiredFlag)
	}
	if image1Path == "" {
		return hostimage.Inputs{}, "", fmt.Errorf("%w: --image-1-path", errMissingRequiredFlag)
	}
	if outputPath == "" {
		return hostimage.Inputs{}, "", fmt.Errorf("%w: --output-path", errMissingRequiredFlag)
	}

	bootloader, err := os.ReadFile(bootloaderPath)
	if err != nil {
		return hostimage.Inputs{}, "", fmt.Errorf("reading bootloader: %w", err)
	}

	image1, err := os.ReadFile(image1Path)
	if err != nil {
		return hostimage.Inputs{}, "", fmt.Errorf("reading image 1: %w", err)
	}

	var image2, image3 []byte

	if image2Path != "" {
		if image2, err = os.ReadFile(image2Path); err != nil {
			return hostimage.Inputs{}, "", fmt.Errorf("reading image 2: %w", err)
		}
	}

	if image3Path != "" {
		if image3, err = os.ReadFile(image3Path); err != nil {
			return hostimage.Inputs{}, "", fmt.Errorf("reading image 3: %w", err)
		}
	}

	return hostimage.Inputs{
		Bootloader:     bootloader,
		Image1:         image1,
		Image2:         image2,
		Image3:         image3,
		PreferredImage: preferredImage,
	}, outputPath, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}

	return b
}
