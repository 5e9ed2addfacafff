// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ups

import (
	"context"

	"github.com/ffutop/ups-modbus/internal/cache"
	"github.com/ffutop/ups-modbus/internal/decode"
	"github.com/ffutop/ups-modbus/internal/telemetry"
)

// Readings holds the last decoded value of every group. Groups never read
// keep their zero value.
type Readings struct {
	Identity decode.Identity
	Input    decode.Input
	Output   decode.Output
	Battery  decode.Battery
	Status   decode.Status
}

var _ telemetry.Readings = (*Client)(nil)

// Snapshot returns the cached readings without touching the device.
func (c *Client) Snapshot() Readings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readings
}

func ensure[V any](ctx context.Context, c *Client, g Group, get func(*Readings) V) (V, error) {
	return cache.Ensure(c.tracker, g, g.RunOnce(),
		func() error { return c.refreshLocked(ctx, g) },
		func() V { return get(&c.readings) })
}

// Identity returns the unit identity, read once per client.
func (c *Client) Identity(ctx context.Context) (decode.Identity, error) {
	return ensure(ctx, c, GroupIdentity, func(r *Readings) decode.Identity { return r.Identity })
}

func (c *Client) Input(ctx context.Context) (decode.Input, error) {
	return ensure(ctx, c, GroupInput, func(r *Readings) decode.Input { return r.Input })
}

func (c *Client) Output(ctx context.Context) (decode.Output, error) {
	return ensure(ctx, c, GroupOutput, func(r *Readings) decode.Output { return r.Output })
}

func (c *Client) Battery(ctx context.Context) (decode.Battery, error) {
	return ensure(ctx, c, GroupBattery, func(r *Readings) decode.Battery { return r.Battery })
}

func (c *Client) Status(ctx context.Context) (decode.Status, error) {
	return ensure(ctx, c, GroupStatus, func(r *Readings) decode.Status { return r.Status })
}

// OutputVoltage returns the phase A output voltage in volts.
func (c *Client) OutputVoltage(ctx context.Context) (float64, error) {
	return ensure(ctx, c, GroupOutput, func(r *Readings) float64 { return r.Output.VoltageA })
}

// LoadPercent returns the output load in percent of rated power.
func (c *Client) LoadPercent(ctx context.Context) (float64, error) {
	return ensure(ctx, c, GroupOutput, func(r *Readings) float64 { return r.Output.LoadPercent })
}

// BatteryCapacity returns the remaining battery capacity in percent.
func (c *Client) BatteryCapacity(ctx context.Context) (float64, error) {
	return ensure(ctx, c, GroupBattery, func(r *Readings) float64 { return r.Battery.Capacity })
}

func (c *Client) ModelName(ctx context.Context) (string, error) {
	return ensure(ctx, c, GroupIdentity, func(r *Readings) string { return r.Identity.Model })
}

func (c *Client) FirmwareVersion(ctx context.Context) (string, error) {
	return ensure(ctx, c, GroupIdentity, func(r *Readings) string { return r.Identity.FirmwareVersion })
}
