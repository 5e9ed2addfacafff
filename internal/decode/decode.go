// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package decode turns raw register sets into engineering-unit readings.
package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ffutop/ups-modbus/modbus"
)

// Scaled maps one register onto a float field of T.
type Scaled[T any] struct {
	Index  int
	Scale  float64
	Signed bool
	Field  func(*T) *float64
}

// Apply writes every entry of table into dst. The caller has checked the
// register count with Require.
func Apply[T any](dst *T, regs []uint16, table []Scaled[T]) {
	for _, e := range table {
		*e.Field(dst) = Scale(regs[e.Index], e.Scale, e.Signed)
	}
}

// MinRegisters returns the register count a table needs.
func MinRegisters[T any](table []Scaled[T]) int {
	n := 0
	for _, e := range table {
		if e.Index+1 > n {
			n = e.Index + 1
		}
	}
	return n
}

// Scale converts a raw register. Signed registers are two's complement.
func Scale(raw uint16, factor float64, signed bool) float64 {
	if signed {
		return float64(int16(raw)) * factor
	}
	return float64(raw) * factor
}

// Require fails with modbus.ErrUnexpectedLength when regs is shorter than min.
func Require(group string, regs []uint16, min int) error {
	if len(regs) < min {
		return fmt.Errorf("%w: %s returned %d registers, need %d", modbus.ErrUnexpectedLength, group, len(regs), min)
	}
	return nil
}

// ASCII decodes data[from:to] as characters, dropping NUL padding and
// surrounding spaces. The span is clipped to data.
func ASCII(data []byte, from, to int) string {
	if to > len(data) {
		to = len(data)
	}
	if from >= to {
		return ""
	}
	s := strings.ReplaceAll(string(data[from:to]), "\x00", "")
	return strings.TrimSpace(s)
}

// Version joins raw register values with dots.
func Version(regs ...uint16) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = strconv.Itoa(int(r))
	}
	return strings.Join(parts, ".")
}
