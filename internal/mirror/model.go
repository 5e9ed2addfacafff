// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mirror

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ffutop/ups-modbus/modbus"
)

const (
	MaxAddress = 65535
)

// TableType represents the type of Modbus register table.
type TableType int

const (
	TableHoldingRegisters TableType = iota
	TableInputRegisters
)

func (t TableType) String() string {
	switch t {
	case TableHoldingRegisters:
		return "holding"
	case TableInputRegisters:
		return "input"
	default:
		return fmt.Sprintf("TableType(%d)", int(t))
	}
}

// TableFor returns the table a read function code addresses.
func TableFor(functionCode byte) (TableType, error) {
	switch functionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return TableHoldingRegisters, nil
	case modbus.FuncCodeReadInputRegisters:
		return TableInputRegisters, nil
	default:
		return 0, fmt.Errorf("%w: function code 0x%02X has no register table", modbus.ErrInvalidArgument, functionCode)
	}
}

// DataModel holds a register image covering the full 16-bit address space.
type DataModel struct {
	mu sync.RWMutex

	// 4x Holding Registers.
	HoldingRegisters []uint16
	// 3x Input Registers.
	InputRegisters []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		HoldingRegisters: make([]uint16, MaxAddress+1),
		InputRegisters:   make([]uint16, MaxAddress+1),
	}
}

func (m *DataModel) table(t TableType) []uint16 {
	if t == TableInputRegisters {
		return m.InputRegisters
	}
	return m.HoldingRegisters
}

// ReadHoldingRegisters reads a range of holding registers and returns them as BigEndian bytes.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return m.readBytes(TableHoldingRegisters, address, quantity)
}

// ReadInputRegisters reads a range of input registers and returns them as BigEndian bytes.
func (m *DataModel) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return m.readBytes(TableInputRegisters, address, quantity)
}

func (m *DataModel) readBytes(t TableType, address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	regs := m.table(t)
	result := make([]byte, int(quantity)*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], regs[int(address)+i])
	}
	return result, nil
}

// Registers returns a copy of a register range.
func (m *DataModel) Registers(t TableType, address, quantity uint16) ([]uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	out := make([]uint16, quantity)
	copy(out, m.table(t)[address:])
	return out, nil
}

// WriteSingleRegister writes a single holding register.
func (m *DataModel) WriteSingleRegister(address uint16, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HoldingRegisters[address] = value
	return nil
}

// WriteRegisters copies values into a table starting at address.
func (m *DataModel) WriteRegisters(t TableType, address uint16, values []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(values) == 0 {
		return nil
	}
	if int(address)+len(values) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	copy(m.table(t)[address:], values)
	return nil
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
