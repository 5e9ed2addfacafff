// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mirror

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapStorage maps the image file into memory, so register writes land in
// the page cache directly. OnWrite only has to flush.
type MmapStorage struct {
	path string
	file *os.File
	data mmap.MMap
}

func NewMmapStorage(path string) *MmapStorage {
	return &MmapStorage{path: path}
}

func (ms *MmapStorage) Load() (*DataModel, error) {
	f, err := openImage(ms.path)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map image %s: %w", ms.path, err)
	}
	ms.file = f
	ms.data = data
	return mapBytesToModel(data), nil
}

func (ms *MmapStorage) Save(m *DataModel) error {
	if ms.data == nil {
		return nil
	}
	return ms.data.Flush()
}

// OnWrite flushes the mapping. mmap-go flushes whole mappings only.
func (ms *MmapStorage) OnWrite(table TableType, address, quantity uint16) {
	if ms.data == nil {
		return
	}
	if err := ms.data.Flush(); err != nil {
		slog.Error("Failed to flush image", "table", table, "address", address, "err", err)
	}
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		err = ms.data.Unmap()
		ms.data = nil
	}
	if ms.file != nil {
		if cerr := ms.file.Close(); err == nil {
			err = cerr
		}
		ms.file = nil
	}
	return err
}
