// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "time"

const (
	MinSize = 4
	MaxSize = 256

	ExceptionSize = 5

	// MaxReadQuantity is the register count limit of a single read request.
	MaxReadQuantity = 125
)

// DefaultPollInterval is the quiescence sampling step of the adaptive reader.
const DefaultPollInterval = 10 * time.Millisecond
