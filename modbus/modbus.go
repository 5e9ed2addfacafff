// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the protocol vocabulary shared by the codec, the
// transports and the device client.
package modbus

import (
	"errors"
	"fmt"
)

// Function codes used by the power-protection dialect.
const (
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeReadInputRegisters   = 0x04

	// FuncCodeVendorCommand is the first byte of the vendor control header.
	FuncCodeVendorCommand = 0x68

	// ExceptionBit is set in the function code of an exception response.
	ExceptionBit = 0x80
)

// Exception codes.
const (
	ExceptionCodeIllegalFunction     = 0x01
	ExceptionCodeIllegalDataAddress  = 0x02
	ExceptionCodeIllegalDataValue    = 0x03
	ExceptionCodeServerDeviceFailure = 0x04
)

var (
	// ErrMalformedFrame is returned when a raw response cannot hold a frame.
	ErrMalformedFrame = errors.New("modbus: malformed frame")
	// ErrCRCMismatch is returned by callers that reject frames failing the CRC check.
	ErrCRCMismatch = errors.New("modbus: crc mismatch")
	// ErrUnexpectedLength is returned when a response carries fewer registers than required.
	ErrUnexpectedLength = errors.New("modbus: unexpected register length")
	// ErrTimeout is returned when no byte arrived within the read window.
	ErrTimeout = errors.New("modbus: request timed out")
	// ErrInvalidArgument is returned for malformed requests and unsupported control values.
	ErrInvalidArgument = errors.New("modbus: invalid argument")
)

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// ExceptionError reports an exception response from the device.
type ExceptionError struct {
	FunctionCode  byte
	ExceptionCode byte
}

func (e *ExceptionError) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode&^ExceptionBit)
}

// IsException reports whether a function code marks an exception response.
func IsException(functionCode byte) bool {
	return functionCode&ExceptionBit != 0
}
