// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/ups-modbus/modbus"
)

// ExtractRegisters reinterprets the frame data as big-endian registers.
//
// A leading byte is treated as a byte-count prefix and skipped only when its
// value equals len(Data)-1. A payload whose first byte happens to match that
// length is indistinguishable from a prefixed one; use ExtractRegistersStrict
// for function codes that always carry the count.
func ExtractRegisters(f *Frame) []uint16 {
	if f == nil || len(f.Data) < 2 {
		return []uint16{}
	}
	data := f.Data
	offset := 0
	if int(data[0]) == len(data)-1 {
		offset = 1
	}
	return unpackRegisters(data[offset:])
}

// ExtractRegistersStrict decodes a 0x03/0x04 style payload whose first byte is
// the byte count. The count must be even and match the remaining payload.
func ExtractRegistersStrict(f *Frame) ([]uint16, error) {
	if f == nil || len(f.Data) < 1 {
		return nil, fmt.Errorf("%w: payload is empty", modbus.ErrUnexpectedLength)
	}
	byteCount := int(f.Data[0])
	if byteCount%2 != 0 {
		return nil, fmt.Errorf("%w: byte count '%v' is not even", modbus.ErrUnexpectedLength, byteCount)
	}
	if len(f.Data)-1 != byteCount {
		return nil, fmt.Errorf("%w: byte count '%v' does not match payload '%v'", modbus.ErrUnexpectedLength, byteCount, len(f.Data)-1)
	}
	return unpackRegisters(f.Data[1:]), nil
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}
