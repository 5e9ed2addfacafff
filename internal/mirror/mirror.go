// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package mirror keeps a local image of the device registers, written on
// every successful group refresh and optionally persisted.
package mirror

import (
	"fmt"
	"log/slog"

	"github.com/ffutop/ups-modbus/internal/config"
)

// Mirror pairs a register image with the storage that persists it.
type Mirror struct {
	model   *DataModel
	storage Storage
}

// New wraps an already loaded model.
func New(m *DataModel, storage Storage) *Mirror {
	return &Mirror{model: m, storage: storage}
}

// Open builds the storage named by cfg and loads the image from it. A
// storage that fails to load falls back to memory.
func Open(cfg config.MirrorConfig) (*Mirror, error) {
	var storage Storage
	switch cfg.Type {
	case "file":
		slog.Info("Initializing register mirror with file persistence", "path", cfg.Path)
		storage = NewFileStorage(cfg.Path)
	case "mmap":
		slog.Info("Initializing register mirror with MMAP persistence", "path", cfg.Path)
		storage = NewMmapStorage(cfg.Path)
	case "sql":
		slog.Info("Initializing register mirror with SQL persistence", "driver", "sqlite3", "dsn", cfg.Path)
		storage = NewSQLStorage("sqlite3", cfg.Path)
	case "", "memory":
		storage = NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unknown mirror type %q", cfg.Type)
	}

	m, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s mirror: %w", cfg.Type, err)
	}
	return New(m, storage), nil
}

// Model returns the register image.
func (mr *Mirror) Model() *DataModel {
	return mr.model
}

// Record stores registers read with functionCode starting at start.
func (mr *Mirror) Record(functionCode byte, start uint16, registers []uint16) error {
	if len(registers) == 0 {
		return nil
	}
	table, err := TableFor(functionCode)
	if err != nil {
		return err
	}
	if err := mr.model.WriteRegisters(table, start, registers); err != nil {
		return fmt.Errorf("mirror %s[%d]: %w", table, start, err)
	}
	mr.storage.OnWrite(table, start, uint16(len(registers)))
	return nil
}

// Registers reads back a range of the image.
func (mr *Mirror) Registers(table TableType, address, quantity uint16) ([]uint16, error) {
	return mr.model.Registers(table, address, quantity)
}

// Close saves the image and releases the storage.
func (mr *Mirror) Close() error {
	err := mr.storage.Save(mr.model)
	if closer, ok := mr.storage.(interface{ Close() error }); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
