// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator emulates the power-protection device on top of a
// register image, for the local transport and for tests.
package simulator

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/ffutop/ups-modbus/internal/mirror"
	"github.com/ffutop/ups-modbus/modbus"
	"github.com/ffutop/ups-modbus/modbus/rtu"
)

// BacklightRegister is the holding register the backlight command stores its minutes in.
const BacklightRegister = 10100

var backlightHeader = []byte{0x27, 0x40}

// Device implements the dialect on top of a register image.
type Device struct {
	SlaveID byte

	mu    sync.Mutex
	model *mirror.DataModel
	// Corrupt, when set, flips the CRC of the next response.
	corrupt bool
}

// NewDevice creates a Device answering to slaveID.
func NewDevice(slaveID byte, m *mirror.DataModel) *Device {
	return &Device{SlaveID: slaveID, model: m}
}

// Model returns the register image the device serves.
func (d *Device) Model() *mirror.DataModel {
	return d.model
}

// CorruptNext makes the next response carry a wrong CRC.
func (d *Device) CorruptNext() {
	d.mu.Lock()
	d.corrupt = true
	d.mu.Unlock()
}

// Handle answers a raw request frame. It returns nil when the device stays
// silent: the frame is malformed, fails its CRC or is addressed elsewhere.
func (d *Device) Handle(raw []byte) []byte {
	req, err := rtu.DecodeFrame(raw)
	if err != nil || !req.CRCValid {
		slog.Debug("simulator: dropping request", "request", hex.EncodeToString(raw), "err", err)
		return nil
	}
	if req.SlaveID != d.SlaveID {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pdu := d.Process(req.PDU())
	resp := &rtu.Frame{SlaveID: d.SlaveID, FunctionCode: pdu.FunctionCode, Data: pdu.Data}
	out, err := resp.Encode()
	if err != nil {
		return nil
	}
	if d.corrupt {
		out[len(out)-1] ^= 0xFF
		d.corrupt = false
	}
	return out
}

// Process executes the function code against the register image.
func (d *Device) Process(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return d.handleRead(req, d.model.ReadHoldingRegisters)
	case modbus.FuncCodeReadInputRegisters:
		return d.handleRead(req, d.model.ReadInputRegisters)
	case modbus.FuncCodeVendorCommand:
		return d.handleVendorCommand(req)
	default:
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction)
	}
}

func (d *Device) handleRead(req modbus.ProtocolDataUnit, read func(address, quantity uint16) ([]byte, error)) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > rtu.MaxReadQuantity {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	data, err := read(address, quantity)
	if err != nil {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

func (d *Device) handleVendorCommand(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 || !bytes.Equal(req.Data[:2], backlightHeader) {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction)
	}
	minutes := binary.BigEndian.Uint16(req.Data[2:4])
	if minutes == 0 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	d.model.WriteSingleRegister(BacklightRegister, minutes)

	return req // Echo request
}

func exception(funcCode byte, code byte) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{
		FunctionCode: funcCode | modbus.ExceptionBit,
		Data:         []byte{code},
	}
}
