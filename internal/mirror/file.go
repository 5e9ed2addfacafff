// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mirror

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// FileStorage keeps the image in memory and writes changed register
// ranges back to a plain file.
type FileStorage struct {
	path string
	file *os.File
	data []byte
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the image, creating the file if necessary.
func (fs *FileStorage) Load() (*DataModel, error) {
	f, err := openImage(fs.path)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read image %s: %w", fs.path, err)
	}
	fs.file = f
	fs.data = data
	return mapBytesToModel(data), nil
}

// Save writes the whole image.
func (fs *FileStorage) Save(m *DataModel) error {
	return fs.writeBack(0, totalSize)
}

// OnWrite writes back the registers that changed.
func (fs *FileStorage) OnWrite(table TableType, address, quantity uint16) {
	off, n := region(table, address, quantity)
	if err := fs.writeBack(off, n); err != nil {
		slog.Error("Failed to persist registers", "table", table, "address", address, "err", err)
	}
}

func (fs *FileStorage) writeBack(off, n int) error {
	if fs.data == nil || fs.file == nil || n <= 0 {
		return nil
	}
	if _, err := fs.file.WriteAt(fs.data[off:off+n], int64(off)); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync image: %w", err)
	}
	return nil
}

func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
