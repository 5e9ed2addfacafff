// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mirror

import (
	"fmt"
	"os"
	"unsafe"
)

// Image layout shared by the file and mmap storages:
//
//	holding registers  65536 * 2 bytes at offset 0
//	input registers    65536 * 2 bytes at offset 131072
const (
	sizeHolding = (MaxAddress + 1) * 2
	sizeInput   = (MaxAddress + 1) * 2
	totalSize   = sizeHolding + sizeInput

	offsetHolding = 0
	offsetInput   = offsetHolding + sizeHolding
)

// openImage opens path read-write, creating it and sizing it to the image
// layout when needed.
func openImage(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(totalSize) {
		if err := f.Truncate(int64(totalSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize image %s: %w", path, err)
		}
	}
	return f, nil
}

// region returns the byte span of a register range within the image.
func region(table TableType, address, quantity uint16) (offset, length int) {
	offset = offsetHolding
	if table == TableInputRegisters {
		offset = offsetInput
	}
	offset += int(address) * 2
	length = int(quantity) * 2
	if offset+length > totalSize {
		length = totalSize - offset
	}
	return offset, length
}

// mapBytesToModel constructs a DataModel backed by the provided data slice.
// Registers are stored in host byte order, so image files are not portable
// across architectures with different endianness.
func mapBytesToModel(data []byte) *DataModel {
	m := &DataModel{}

	holdingBytes := data[offsetHolding : offsetHolding+sizeHolding]
	m.HoldingRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&holdingBytes[0])), sizeHolding/2)

	inputBytes := data[offsetInput : offsetInput+sizeInput]
	m.InputRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&inputBytes[0])), sizeInput/2)

	return m
}
