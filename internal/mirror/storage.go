// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mirror

// Storage defines the interface for persisting the register image.
type Storage interface {
	// Load loads the data model from storage.
	// If no data exists, it returns a new zeroed model.
	Load() (*DataModel, error)

	// Save saves the current data model to storage.
	Save(model *DataModel) error

	// OnWrite is called after a register range was modified.
	OnWrite(table TableType, address, quantity uint16)
}
