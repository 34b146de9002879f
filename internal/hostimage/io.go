// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hostimage

import (
	"bytes"
	"io"
	"os"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
