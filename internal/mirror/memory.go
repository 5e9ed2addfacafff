// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mirror

// MemoryStorage is a no-op storage (non-persistent).
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Load() (*DataModel, error) {
	return NewDataModel(), nil
}

func (ms *MemoryStorage) Save(model *DataModel) error {
	return nil
}

func (ms *MemoryStorage) OnWrite(table TableType, address, quantity uint16) {}
