// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// manifest describes a write invocation as HUJSON (JSON with comments
// and trailing commas), an alternative to passing every path as a
// flag. Flags given alongside --manifest-path take precedence field by
// field.
type manifest struct {
	BootloaderPath string `json:"bootloader_path"`
	Image1Path     string `json:"image_1_path"`
	Image2Path     string `json:"image_2_path,omitempty"`
	Image3Path     string `json:"image_3_path,omitempty"`
	OutputPath     string `json:"output_path"`
	PreferredImage uint32 `json:"preferred_image,omitempty"`
}

func loadManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return manifest{}, fmt.Errorf("invalid HUJSON: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(standardized, &m); err != nil {
		return manifest{}, fmt.Errorf("invalid manifest JSON: %w", err)
	}

	return m, nil
}
