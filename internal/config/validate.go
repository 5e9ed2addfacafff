// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Device.SlaveID < 1 || cfg.Device.SlaveID > 247 {
		return fmt.Errorf("device.slave_id %d outside 1-247", cfg.Device.SlaveID)
	}

	switch cfg.Device.Transport {
	case "serial":
		if cfg.Device.Serial.Device == "" {
			return fmt.Errorf("device.serial.device is required for the serial transport")
		}
		switch cfg.Device.Serial.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("device.serial.parity %q must be N, E or O", cfg.Device.Serial.Parity)
		}
	case "tcp":
		if cfg.Device.Tcp.Address == "" {
			return fmt.Errorf("device.tcp.address is required for the tcp transport")
		}
	case "local":
		if cfg.Device.Local.ChunkSize < 0 || cfg.Device.Local.ChunkDelay < 0 {
			return fmt.Errorf("device.local chunking must not be negative")
		}
	default:
		return fmt.Errorf("unknown device.transport %q", cfg.Device.Transport)
	}

	if cfg.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must not be negative")
	}
	if cfg.Reader.PollInterval <= 0 {
		return fmt.Errorf("reader.poll_interval must be positive")
	}
	if cfg.Reader.MaxExtraDelay < 0 {
		return fmt.Errorf("reader.max_extra_delay must not be negative")
	}

	for _, name := range GroupNames {
		g, ok := cfg.Groups[name]
		if !ok {
			return fmt.Errorf("groups.%s is missing", name)
		}
		if g.FunctionCode != 3 && g.FunctionCode != 4 {
			return fmt.Errorf("groups.%s: function_code %d must be 3 or 4", name, g.FunctionCode)
		}
		if g.Start < 0 || g.Start > 0xFFFF {
			return fmt.Errorf("groups.%s: start %d outside 0-65535", name, g.Start)
		}
		if g.Count < 1 || g.Count > 125 {
			return fmt.Errorf("groups.%s: count %d outside 1-125", name, g.Count)
		}
		if g.Start+g.Count > 0x10000 {
			return fmt.Errorf("groups.%s: range %d+%d past the address space", name, g.Start, g.Count)
		}
		if g.MinRegisters < 0 || g.MinRegisters > g.Count {
			return fmt.Errorf("groups.%s: min_registers %d exceeds count %d", name, g.MinRegisters, g.Count)
		}
		if g.BaseDelay < 0 {
			return fmt.Errorf("groups.%s: base_delay must not be negative", name)
		}
	}
	for name := range cfg.Groups {
		if !isGroupName(name) {
			return fmt.Errorf("unknown group %q", name)
		}
	}

	if _, err := cfg.Commands.Backlight.HeaderBytes(); err != nil {
		return fmt.Errorf("commands.backlight: %w", err)
	}

	switch cfg.Mirror.Type {
	case "", "memory":
	case "file", "mmap", "sql":
		if cfg.Mirror.Path == "" {
			return fmt.Errorf("mirror.path is required for mirror type %q", cfg.Mirror.Type)
		}
	default:
		return fmt.Errorf("unknown mirror.type %q", cfg.Mirror.Type)
	}

	return nil
}

func isGroupName(name string) bool {
	for _, n := range GroupNames {
		if n == name {
			return true
		}
	}
	return false
}
