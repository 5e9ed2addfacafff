// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ups

import (
	"fmt"
	"time"

	"github.com/ffutop/ups-modbus/internal/config"
	"github.com/ffutop/ups-modbus/modbus"
	"github.com/ffutop/ups-modbus/modbus/rtu"
)

// Group is one register block read in a single exchange.
type Group int

const (
	GroupIdentity Group = iota
	GroupInput
	GroupOutput
	GroupBattery
	GroupStatus

	numGroups
)

// Groups lists every group in polling order.
var Groups = []Group{GroupIdentity, GroupInput, GroupOutput, GroupBattery, GroupStatus}

var groupNames = [numGroups]string{
	config.GroupIdentity,
	config.GroupInput,
	config.GroupOutput,
	config.GroupBattery,
	config.GroupStatus,
}

func (g Group) String() string {
	if g < 0 || g >= numGroups {
		return fmt.Sprintf("group(%d)", int(g))
	}
	return groupNames[g]
}

// RunOnce reports whether the group is read once per client. The identity
// block does not change while the unit runs.
func (g Group) RunOnce() bool {
	return g == GroupIdentity
}

// ParseGroup returns the group named name.
func ParseGroup(name string) (Group, error) {
	for i, n := range groupNames {
		if n == name {
			return Group(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown group %q", modbus.ErrInvalidArgument, name)
}

// GroupSpec locates a group on the device.
type GroupSpec struct {
	FunctionCode byte
	Start        uint16
	Count        uint16
	MinRegisters int
	BaseDelay    time.Duration
}

// specsFromConfig builds the catalog. Every group must be configured.
func specsFromConfig(groups map[string]config.GroupConfig) ([numGroups]GroupSpec, error) {
	var specs [numGroups]GroupSpec
	for _, g := range Groups {
		gc, ok := groups[g.String()]
		if !ok {
			return specs, fmt.Errorf("%w: group %q is not configured", modbus.ErrInvalidArgument, g)
		}
		if gc.FunctionCode <= 0 || gc.FunctionCode > 0x7F {
			return specs, fmt.Errorf("%w: group %q: function code %d", modbus.ErrInvalidArgument, g, gc.FunctionCode)
		}
		if gc.Start < 0 || gc.Start > 0xFFFF {
			return specs, fmt.Errorf("%w: group %q: start %d", modbus.ErrInvalidArgument, g, gc.Start)
		}
		if gc.Count < 1 || gc.Count > rtu.MaxReadQuantity {
			return specs, fmt.Errorf("%w: group %q: count %d", modbus.ErrInvalidArgument, g, gc.Count)
		}
		specs[g] = GroupSpec{
			FunctionCode: byte(gc.FunctionCode),
			Start:        uint16(gc.Start),
			Count:        uint16(gc.Count),
			MinRegisters: gc.MinRegisters,
			BaseDelay:    gc.BaseDelay,
		}
	}
	return specs, nil
}
