// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

const (
	initial    = 0xFFFF
	polynomial = 0xA001
)

// CRC accumulates the Modbus CRC16 (reflected, poly 0xA001, init 0xFFFF,
// no final xor).
type CRC struct {
	value uint16
}

func (crc *CRC) Reset() *CRC {
	crc.value = initial
	return crc
}

func (crc *CRC) PushByte(b byte) *CRC {
	crc.value ^= uint16(b)
	for i := 0; i < 8; i++ {
		if crc.value&0x0001 != 0 {
			crc.value = (crc.value >> 1) ^ polynomial
		} else {
			crc.value >>= 1
		}
	}
	return crc
}

func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.PushByte(b)
	}
	return crc
}

func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum returns the CRC16 of data. An optional length limits the
// computation to data[:length]; it is clamped to len(data). The checksum of
// an empty span is 0xFFFF.
func Checksum(data []byte, length ...int) uint16 {
	n := len(data)
	if len(length) > 0 && length[0] >= 0 && length[0] < n {
		n = length[0]
	}
	var crc CRC
	return crc.Reset().PushBytes(data[:n]).Value()
}
