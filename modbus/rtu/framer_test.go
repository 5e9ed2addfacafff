// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	goburrow "github.com/goburrow/modbus"

	"github.com/ffutop/ups-modbus/modbus"
)

func TestEncodeRequest(t *testing.T) {
	got := EncodeRequest(0x01, 0x03, 0x0000, 0x0001)
	want := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeRequest() = % X, want % X", got, want)
	}
}

func TestEncodeRequest_MatchesGoburrow(t *testing.T) {
	handler := goburrow.NewRTUClientHandler("")
	rnd := rand.New(rand.NewSource(3))

	for i := 0; i < 100; i++ {
		slave := byte(1 + rnd.Intn(247))
		fc := byte(3 + rnd.Intn(2))
		start := uint16(rnd.Intn(65536))
		count := uint16(1 + rnd.Intn(MaxReadQuantity))

		data := make([]byte, 4)
		binary.BigEndian.PutUint16(data, start)
		binary.BigEndian.PutUint16(data[2:], count)
		handler.SlaveId = slave
		want, err := handler.Encode(&goburrow.ProtocolDataUnit{FunctionCode: fc, Data: data})
		if err != nil {
			t.Fatalf("goburrow encode: %v", err)
		}

		if got := EncodeRequest(slave, fc, start, count); !bytes.Equal(got, want) {
			t.Fatalf("EncodeRequest(%d, %d, %d, %d) = % X, want % X", slave, fc, start, count, got, want)
		}
		if _, err := handler.Decode(want); err != nil {
			t.Fatalf("goburrow rejected our frame: %v", err)
		}
	}
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))

	for i := 0; i < 100; i++ {
		slave := byte(rnd.Intn(256))
		fc := byte(rnd.Intn(0x80))
		start := uint16(rnd.Intn(65536))
		count := uint16(rnd.Intn(65536))

		f, err := DecodeFrame(EncodeRequest(slave, fc, start, count))
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if !f.CRCValid {
			t.Fatalf("frame %d: crc invalid", i)
		}
		if f.SlaveID != slave || f.FunctionCode != fc {
			t.Fatalf("frame %d: header = %d/%d, want %d/%d", i, f.SlaveID, f.FunctionCode, slave, fc)
		}
		if got := binary.BigEndian.Uint16(f.Data); got != start {
			t.Fatalf("frame %d: start = %d, want %d", i, got, start)
		}
		if got := binary.BigEndian.Uint16(f.Data[2:]); got != count {
			t.Fatalf("frame %d: count = %d, want %d", i, got, count)
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		wantErr   error
		wantValid bool
		wantData  []byte
	}{
		{"TooShort", []byte{0x01, 0x03, 0x00}, modbus.ErrMalformedFrame, false, nil},
		{"Empty", nil, modbus.ErrMalformedFrame, false, nil},
		{"MinimumFrame", []byte{0x02, 0x07, 0x41, 0x12}, nil, true, []byte{}},
		{"ReadResponse", []byte{0x01, 0x03, 0x02, 0xAA, 0xBB, 0x86, 0x97}, nil, true, []byte{0x02, 0xAA, 0xBB}},
		{"BadCRC", []byte{0x01, 0x03, 0x02, 0xAA, 0xBB, 0xFF, 0xFF}, nil, false, []byte{0x02, 0xAA, 0xBB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if f.CRCValid != tt.wantValid {
				t.Errorf("CRCValid = %v, want %v", f.CRCValid, tt.wantValid)
			}
			if !bytes.Equal(f.Data, tt.wantData) {
				t.Errorf("Data = % X, want % X", f.Data, tt.wantData)
			}
		})
	}
}

func TestDecodeFrame_CRCLittleEndian(t *testing.T) {
	raw := EncodeRequest(0x01, 0x03, 0x0000, 0x0001)
	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.CRC != 0x0A84 {
		t.Errorf("CRC = %#04x, want 0x0a84", f.CRC)
	}
}

func TestEncodeCommand(t *testing.T) {
	got, err := EncodeCommand(0x01, []byte{0x68, 0x27, 0x40}, []byte{0x00, 0x05})
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	if !bytes.Equal(got[:6], []byte{0x01, 0x68, 0x27, 0x40, 0x00, 0x05}) {
		t.Fatalf("EncodeCommand() = % X", got)
	}
	f, err := DecodeFrame(got)
	if err != nil || !f.CRCValid {
		t.Fatalf("command frame does not decode cleanly: %v %+v", err, f)
	}

	if _, err := EncodeCommand(0x01, nil, []byte{0x00, 0x05}); !errors.Is(err, modbus.ErrInvalidArgument) {
		t.Errorf("empty header error = %v, want ErrInvalidArgument", err)
	}
}

func TestFrame_Exception(t *testing.T) {
	f := &Frame{SlaveID: 1, FunctionCode: 0x83, Data: []byte{0x02}}
	raw, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != ExceptionSize {
		t.Fatalf("exception frame length = %d, want %d", len(raw), ExceptionSize)
	}

	decoded, err := DecodeFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	var exc *modbus.ExceptionError
	if !errors.As(decoded.Exception(), &exc) {
		t.Fatalf("Exception() = %v, want *ExceptionError", decoded.Exception())
	}
	if exc.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("ExceptionCode = %d", exc.ExceptionCode)
	}
	if len(ExtractRegisters(&Frame{FunctionCode: 0x83})) != 0 {
		t.Errorf("exception frame produced registers")
	}
}

func TestVerifyResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    *Frame
		wantErr bool
	}{
		{"Match", &Frame{SlaveID: 1, FunctionCode: 0x04}, false},
		{"Exception", &Frame{SlaveID: 1, FunctionCode: 0x84}, false},
		{"WrongSlave", &Frame{SlaveID: 2, FunctionCode: 0x04}, true},
		{"WrongFunction", &Frame{SlaveID: 1, FunctionCode: 0x03}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyResponse(1, 0x04, tt.resp); (err != nil) != tt.wantErr {
				t.Errorf("VerifyResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
