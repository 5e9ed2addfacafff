// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/ups-modbus/modbus"
	"github.com/ffutop/ups-modbus/modbus/crc"
)

// Frame is a decoded RTU frame.
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes (little-endian)
type Frame struct {
	SlaveID      byte
	FunctionCode byte
	Data         []byte
	CRC          uint16
	// CRCValid is set by DecodeFrame when CRC matches the checksum of the
	// address, function code and data.
	CRCValid bool
}

// DecodeFrame parses a raw response. A CRC mismatch does not fail the decode;
// it is reported through CRCValid and the caller decides what to do with it.
func DecodeFrame(raw []byte) (*Frame, error) {
	length := len(raw)
	// Minimum size (including address, function and CRC)
	if length < MinSize {
		return nil, fmt.Errorf("%w: length '%v' does not meet minimum '%v'", modbus.ErrMalformedFrame, length, MinSize)
	}

	checksum := binary.LittleEndian.Uint16(raw[length-2:])
	data := make([]byte, length-4)
	copy(data, raw[2:length-2])

	return &Frame{
		SlaveID:      raw[0],
		FunctionCode: raw[1],
		Data:         data,
		CRC:          checksum,
		CRCValid:     checksum == crc.Checksum(raw, length-2),
	}, nil
}

// Encode encodes the frame and appends a freshly computed CRC. The CRC and
// CRCValid fields are updated to match the encoded bytes.
func (f *Frame) Encode() (raw []byte, err error) {
	length := len(f.Data) + 4
	if length > MaxSize {
		err = fmt.Errorf("%w: length of data '%v' must not be bigger than '%v'", modbus.ErrInvalidArgument, length, MaxSize)
		return
	}
	raw = make([]byte, length)

	raw[0] = f.SlaveID
	raw[1] = f.FunctionCode
	copy(raw[2:], f.Data)

	checksum := crc.Checksum(raw, length-2)
	binary.LittleEndian.PutUint16(raw[length-2:], checksum)

	f.CRC = checksum
	f.CRCValid = true
	return
}

// PDU returns the function code and data of the frame.
func (f *Frame) PDU() modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{FunctionCode: f.FunctionCode, Data: f.Data}
}

// IsException reports whether the frame is an exception response.
func (f *Frame) IsException() bool {
	return modbus.IsException(f.FunctionCode)
}

// Exception returns the device exception carried by the frame, or nil.
func (f *Frame) Exception() error {
	if !f.IsException() {
		return nil
	}
	e := &modbus.ExceptionError{FunctionCode: f.FunctionCode}
	if len(f.Data) > 0 {
		e.ExceptionCode = f.Data[0]
	}
	return e
}

// EncodeRequest builds a register read request:
// slave, function, start (big-endian), count (big-endian), crc (little-endian).
func EncodeRequest(slaveID, functionCode byte, start, count uint16) []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], start)
	binary.BigEndian.PutUint16(data[2:], count)

	f := &Frame{SlaveID: slaveID, FunctionCode: functionCode, Data: data}
	raw, _ := f.Encode() // four data bytes always fit
	return raw
}

// EncodeCommand builds a vendor control frame: slave, header, payload, crc.
// The first header byte is the function code.
func EncodeCommand(slaveID byte, header, payload []byte) ([]byte, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: command header is empty", modbus.ErrInvalidArgument)
	}
	data := make([]byte, 0, len(header)-1+len(payload))
	data = append(data, header[1:]...)
	data = append(data, payload...)

	f := &Frame{SlaveID: slaveID, FunctionCode: header[0], Data: data}
	return f.Encode()
}

// VerifyResponse checks that resp answers a request sent to slaveID with
// functionCode. Exception responses for the same function pass.
func VerifyResponse(slaveID, functionCode byte, resp *Frame) error {
	// Slave address must match
	if resp.SlaveID != slaveID {
		return fmt.Errorf("%w: response slave id '%v' does not match request '%v'", modbus.ErrMalformedFrame, resp.SlaveID, slaveID)
	}
	if resp.FunctionCode&^modbus.ExceptionBit != functionCode {
		return fmt.Errorf("%w: response function '%v' does not match request '%v'", modbus.ErrMalformedFrame, resp.FunctionCode, functionCode)
	}
	return nil
}
