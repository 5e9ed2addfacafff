// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"testing"

	"github.com/ffutop/ups-modbus/modbus"
)

func assertRegisters(t *testing.T, expected, actual []uint16) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("Expected length %d, but got %d (%v)", len(expected), len(actual), actual)
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Fatalf("Expected %v, but got %v", expected, actual)
		}
	}
}

func TestExtractRegisters(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []uint16
	}{
		{"Nil", nil, []uint16{}},
		{"SingleByte", []byte{0x01}, []uint16{}},
		{"Prefixed", []byte{0x04, 0x04, 0xD2, 0x00, 0x0A}, []uint16{1234, 10}},
		{"Unprefixed", []byte{0x04, 0xD2, 0x00, 0x0A}, []uint16{1234, 10}},
		{"OddTail", []byte{0x12, 0x34, 0x56}, []uint16{0x1234}},
		{"PrefixedSingle", []byte{0x02, 0xAA, 0xBB}, []uint16{0xAABB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRegisters(t, tt.want, ExtractRegisters(&Frame{FunctionCode: 0x03, Data: tt.data}))
		})
	}
}

func TestExtractRegisters_PrefixConsistency(t *testing.T) {
	for n := 1; n <= 20; n++ {
		values := make([]uint16, n)
		raw := make([]byte, 0, 2*n)
		for i := range values {
			// first byte must not equal 2n so the unprefixed payload is unambiguous
			values[i] = uint16(0x8000 + i*257)
			raw = append(raw, byte(values[i]>>8), byte(values[i]))
		}

		prefixed := append([]byte{byte(2 * n)}, raw...)
		assertRegisters(t, values, ExtractRegisters(&Frame{Data: prefixed}))
		assertRegisters(t, values, ExtractRegisters(&Frame{Data: raw}))
	}
}

func TestExtractRegistersStrict(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []uint16
		wantErr bool
	}{
		{"Valid", []byte{0x04, 0x04, 0xD2, 0x00, 0x0A}, []uint16{1234, 10}, false},
		{"Empty", []byte{}, nil, true},
		{"OddCount", []byte{0x03, 0x04, 0xD2, 0x00}, nil, true},
		{"Truncated", []byte{0x04, 0x04, 0xD2, 0x00}, nil, true},
		{"Overlong", []byte{0x02, 0x04, 0xD2, 0x00, 0x0A}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRegistersStrict(&Frame{FunctionCode: 0x04, Data: tt.data})
			if tt.wantErr {
				if !errors.Is(err, modbus.ErrUnexpectedLength) {
					t.Fatalf("error = %v, want ErrUnexpectedLength", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertRegisters(t, tt.want, got)
		})
	}
}
