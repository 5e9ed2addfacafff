// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"github.com/ffutop/ups-modbus/internal/mirror"
)

// SeedModel is the model string Seed writes into the identity block.
const SeedModel = "PowerSafe 3000RT"

// Seed fills m with the register values of a healthy rack-mount unit on
// utility power.
func Seed(m *mirror.DataModel) {
	identity := make([]uint16, 0, 12)
	model := []byte(SeedModel)
	for i := 0; i < 16; i += 2 {
		identity = append(identity, uint16(model[i])<<8|uint16(model[i+1]))
	}
	identity = append(identity, 2, 1, 7, 2)
	m.WriteRegisters(mirror.TableHoldingRegisters, 10000, identity)

	m.WriteRegisters(mirror.TableInputRegisters, 20000, []uint16{2301, 2298, 2305, 5000, 2300, 5001})
	m.WriteRegisters(mirror.TableInputRegisters, 20025, []uint16{2300, 52, 5000, 37, 118, 125, 94, 2})
	m.WriteRegisters(mirror.TableInputRegisters, 20050, []uint16{545, 12, 100, 42, 253, 2})
	m.WriteRegisters(mirror.TableInputRegisters, 20100, []uint16{1, 0, 0x0040})
}

// NewSeededDevice returns a device answering to slaveID over a seeded in-memory image.
func NewSeededDevice(slaveID byte) *Device {
	m := mirror.NewDataModel()
	Seed(m)
	return NewDevice(slaveID, m)
}
