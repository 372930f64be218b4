// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import (
	"encoding/binary"
	"fmt"
)

func beUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func beUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func putBeUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putBeUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// putFixedString right-pads s with NUL bytes to width and writes it into
// dst, which must be exactly width bytes long. It rejects strings whose
// UTF-8 encoding does not fit, per spec.md §9's guidance to validate
// rather than silently truncate legacy fixed-width fields.
func putFixedString(dst []byte, s string, width int) error {
	b := []byte(s)
	if len(b) > width {
		return fmt.Errorf("protocol: value %q exceeds fixed field width %d", s, width)
	}
	copy(dst, b)
	for i := len(b); i < width; i++ {
		dst[i] = 0
	}
	return nil
}

// getFixedString reads a width-byte NUL-padded field and strips the
// trailing NUL padding.
func getFixedString(src []byte) string {
	end := len(src)
	for end > 0 && src[end-1] == 0 {
		end--
	}
	return string(src[:end])
}

func needLen(data []byte, n int, what string) error {
	if len(data) < n {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncated, what, n, len(data))
	}
	return nil
}
