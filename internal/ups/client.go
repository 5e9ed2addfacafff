// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package ups polls and controls a power-protection unit speaking the
// vendor Modbus RTU dialect.
//
// The client has two layers. Refresh performs one wire exchange for a group
// and replaces that group's decoded values as a whole. The getters
// (Identity, Input, Output, Battery, Status and the scalar shorthands)
// refresh a group only when its values are older than the cache max age,
// so callers may ask as often as they like without flooding the line.
package ups

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/ups-modbus/internal/cache"
	"github.com/ffutop/ups-modbus/internal/config"
	"github.com/ffutop/ups-modbus/internal/decode"
	"github.com/ffutop/ups-modbus/internal/mirror"
	"github.com/ffutop/ups-modbus/internal/registry"
	"github.com/ffutop/ups-modbus/internal/telemetry"
	"github.com/ffutop/ups-modbus/modbus"
	"github.com/ffutop/ups-modbus/modbus/rtu"
	"github.com/ffutop/ups-modbus/transport"
)

// DefaultMaxExtraDelay bounds the adaptive wait after a group's base delay.
const DefaultMaxExtraDelay = 500 * time.Millisecond

// BacklightMinutes are the timer values the unit accepts.
var BacklightMinutes = []int{1, 3, 5, 10, 20, 30}

// Options carries the optional collaborators of a Client.
type Options struct {
	// Directory resolves register names. Nil uses the built-in table.
	Directory *registry.Directory
	// Mirror receives the raw registers of every successful refresh.
	Mirror  *mirror.Mirror
	Metrics *telemetry.Metrics

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Client talks to one unit over a Port. All methods are safe for
// concurrent use; exchanges are serialized.
type Client struct {
	port    transport.Port
	slaveID byte

	groups          [numGroups]GroupSpec
	backlightHeader []byte
	commandDelay    time.Duration
	maxExtraDelay   time.Duration
	discardInvalid  bool

	reader    *rtu.AdaptiveReader
	directory *registry.Directory
	mirror    *mirror.Mirror
	metrics   *telemetry.Metrics

	// mu guards the port, the readings and the tracker.
	mu       sync.Mutex
	tracker  *cache.Tracker[Group]
	readings Readings
}

// New creates a client for the unit described by cfg.
func New(port transport.Port, cfg *config.Config, opts Options) (*Client, error) {
	specs, err := specsFromConfig(cfg.Groups)
	if err != nil {
		return nil, err
	}
	header, err := cfg.Commands.Backlight.HeaderBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: backlight: %v", modbus.ErrInvalidArgument, err)
	}
	if cfg.Device.SlaveID < 1 || cfg.Device.SlaveID > 247 {
		return nil, fmt.Errorf("%w: slave id %d", modbus.ErrInvalidArgument, cfg.Device.SlaveID)
	}

	c := &Client{
		port:            port,
		slaveID:         byte(cfg.Device.SlaveID),
		groups:          specs,
		backlightHeader: header,
		commandDelay:    cfg.Commands.Backlight.BaseDelay,
		maxExtraDelay:   cfg.Reader.MaxExtraDelay,
		discardInvalid:  cfg.CRC.DiscardInvalid,
		reader:          rtu.NewAdaptiveReader(port),
		directory:       opts.Directory,
		mirror:          opts.Mirror,
		metrics:         opts.Metrics,
	}
	if c.maxExtraDelay <= 0 {
		c.maxExtraDelay = DefaultMaxExtraDelay
	}
	if c.directory == nil {
		dir, err := registry.Default()
		if err != nil {
			return nil, err
		}
		c.directory = dir
	}

	c.tracker = cache.New[Group](&c.mu, int(numGroups), cfg.Cache.MaxAge)
	if opts.Now != nil {
		c.tracker.Now = opts.Now
	}
	if cfg.Reader.PollInterval > 0 {
		c.reader.PollInterval = cfg.Reader.PollInterval
	}
	if opts.Sleep != nil {
		c.reader.Sleep = opts.Sleep
	}
	if c.metrics != nil {
		c.reader.OnUnderRun = c.metrics.ObserveUnderRun
	}
	return c, nil
}

// Directory returns the register directory.
func (c *Client) Directory() *registry.Directory {
	return c.directory
}

// UnderRuns returns how often each operation needed more than one poll step.
func (c *Client) UnderRuns() map[string]uint64 {
	return c.reader.UnderRuns()
}

// Spec returns where group lives on the device.
func (c *Client) Spec(g Group) GroupSpec {
	return c.groups[g]
}

// Refresh reads group from the device and replaces its cached values. On
// error the previous values are left untouched.
func (c *Client) Refresh(ctx context.Context, g Group) error {
	if g < 0 || g >= numGroups {
		return fmt.Errorf("%w: %v", modbus.ErrInvalidArgument, g)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(ctx, g); err != nil {
		return err
	}
	c.tracker.Mark(g, g.RunOnce())
	return nil
}

// RefreshAll refreshes every group in turn and returns the first error.
// A failing group does not stop the others.
func (c *Client) RefreshAll(ctx context.Context) error {
	var first error
	for _, g := range Groups {
		if err := c.Refresh(ctx, g); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Refreshed returns when group was last read successfully.
func (c *Client) Refreshed(g Group) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Last(g)
}

func (c *Client) refreshLocked(ctx context.Context, g Group) (err error) {
	spec := c.groups[g]
	op := g.String()
	defer func() { c.observe(op, err) }()

	req := rtu.EncodeRequest(c.slaveID, spec.FunctionCode, spec.Start, spec.Count)
	frame, err := c.exchange(ctx, op, spec.FunctionCode, req, spec.BaseDelay)
	if err != nil {
		return fmt.Errorf("ups: refresh %s: %w", op, err)
	}
	regs, err := registersOf(frame)
	if err != nil {
		return fmt.Errorf("ups: refresh %s: %w", op, err)
	}
	if err := decode.Require(op, regs, spec.MinRegisters); err != nil {
		return fmt.Errorf("ups: refresh %s: %w", op, err)
	}

	// decode into a copy so a failure leaves the group as it was
	next := c.readings
	switch g {
	case GroupIdentity:
		next.Identity, err = decode.DecodeIdentity(frame.Data, regs)
	case GroupInput:
		next.Input, err = decode.DecodeInput(regs)
	case GroupOutput:
		next.Output, err = decode.DecodeOutput(regs)
	case GroupBattery:
		next.Battery, err = decode.DecodeBattery(regs)
	case GroupStatus:
		next.Status, err = decode.DecodeStatus(regs)
	}
	if err != nil {
		return fmt.Errorf("ups: refresh %s: %w", op, err)
	}
	c.readings = next

	if c.mirror != nil {
		if merr := c.mirror.Record(spec.FunctionCode, spec.Start, regs); merr != nil {
			slog.Error("Failed to mirror registers", "group", op, "err", merr)
		}
	}
	return nil
}

// ReadRegisters reads count registers starting at start. The result is not cached.
func (c *Client) ReadRegisters(ctx context.Context, functionCode byte, start, count uint16) (regs []uint16, err error) {
	if count < 1 || count > rtu.MaxReadQuantity {
		return nil, fmt.Errorf("%w: quantity %d must be between 1 and %d", modbus.ErrInvalidArgument, count, rtu.MaxReadQuantity)
	}
	if uint32(start)+uint32(count) > 0x10000 {
		return nil, fmt.Errorf("%w: range %d+%d exceeds the address space", modbus.ErrInvalidArgument, start, count)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	const op = "read"
	defer func() { c.observe(op, err) }()

	req := rtu.EncodeRequest(c.slaveID, functionCode, start, count)
	frame, err := c.exchange(ctx, op, functionCode, req, c.groupDelay(functionCode))
	if err != nil {
		return nil, err
	}
	regs, err = registersOf(frame)
	if err != nil {
		return nil, err
	}
	if len(regs) < int(count) {
		return nil, fmt.Errorf("%w: read %d registers, requested %d", modbus.ErrUnexpectedLength, len(regs), count)
	}
	return regs, nil
}

// groupDelay returns the longest base delay configured for functionCode.
func (c *Client) groupDelay(functionCode byte) time.Duration {
	var d time.Duration
	for _, spec := range c.groups {
		if spec.FunctionCode == functionCode && spec.BaseDelay > d {
			d = spec.BaseDelay
		}
	}
	return d
}

// Command sends a vendor control frame and returns the response. The first
// header byte is the function code.
func (c *Client) Command(ctx context.Context, header, payload []byte) (*rtu.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandLocked(ctx, "command", header, payload)
}

func (c *Client) commandLocked(ctx context.Context, op string, header, payload []byte) (frame *rtu.Frame, err error) {
	defer func() { c.observe(op, err) }()

	req, err := rtu.EncodeCommand(c.slaveID, header, payload)
	if err != nil {
		return nil, err
	}
	return c.exchange(ctx, op, header[0], req, c.commandDelay)
}

// SetBacklightTimer sets the display backlight timeout in minutes.
func (c *Client) SetBacklightTimer(ctx context.Context, minutes int) error {
	if !validBacklight(minutes) {
		return fmt.Errorf("%w: backlight timer %d min, want one of %v", modbus.ErrInvalidArgument, minutes, BacklightMinutes)
	}
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(minutes))

	c.mu.Lock()
	defer c.mu.Unlock()

	frame, err := c.commandLocked(ctx, "backlight", c.backlightHeader, payload)
	if err != nil {
		return fmt.Errorf("ups: set backlight: %w", err)
	}
	// the unit acknowledges by echoing the request
	want := append(append([]byte{}, c.backlightHeader[1:]...), payload...)
	if !bytes.Equal(frame.Data, want) {
		return fmt.Errorf("ups: set backlight: %w: acknowledgement % X", modbus.ErrMalformedFrame, frame.Data)
	}
	slog.Info("Backlight timer set", "minutes", minutes)
	return nil
}

func validBacklight(minutes int) bool {
	for _, m := range BacklightMinutes {
		if m == minutes {
			return true
		}
	}
	return false
}

// exchange writes req and reads one response frame. Caller must hold c.mu.
func (c *Client) exchange(ctx context.Context, op string, functionCode byte, req []byte, baseDelay time.Duration) (*rtu.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if conn, ok := c.port.(transport.Connector); ok {
		if err := conn.Connect(ctx); err != nil {
			return nil, fmt.Errorf("ups: connect: %w", err)
		}
	}
	c.drain()

	slog.Debug("ups: request", "operation", op, "hex", hex.EncodeToString(req))
	if _, err := c.port.Write(req); err != nil {
		return nil, fmt.Errorf("ups: write %s request: %w", op, err)
	}

	raw, err := c.reader.Read(op, baseDelay, c.maxExtraDelay)
	if err != nil {
		return nil, err
	}
	slog.Debug("ups: response", "operation", op, "hex", hex.EncodeToString(raw))

	frame, err := rtu.DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	if !frame.CRCValid {
		if c.discardInvalid {
			slog.Warn("Discarding response with bad CRC", "operation", op, "hex", hex.EncodeToString(raw))
			return nil, fmt.Errorf("%w: %s response", modbus.ErrCRCMismatch, op)
		}
		slog.Warn("Accepting response with bad CRC", "operation", op, "hex", hex.EncodeToString(raw))
	}
	if err := rtu.VerifyResponse(c.slaveID, functionCode, frame); err != nil {
		return nil, err
	}
	if err := frame.Exception(); err != nil {
		return nil, err
	}
	return frame, nil
}

// drain discards bytes left over from an earlier exchange.
func (c *Client) drain() {
	n := c.port.Available()
	if n == 0 {
		return
	}
	stale := make([]byte, n)
	read, err := c.port.Read(stale)
	if err != nil {
		slog.Debug("ups: failed to drain stale bytes", "hex", hex.EncodeToString(stale[:read]), "err", err)
		return
	}
	slog.Debug("ups: discarding stale bytes", "hex", hex.EncodeToString(stale[:read]))
}

func (c *Client) observe(op string, err error) {
	if c.metrics != nil {
		c.metrics.ObserveExchange(op, err)
	}
}

// registersOf extracts the registers of a response. Standard reads carry an
// explicit byte count; vendor function codes fall back to the heuristic.
func registersOf(frame *rtu.Frame) ([]uint16, error) {
	switch frame.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		return rtu.ExtractRegistersStrict(frame)
	default:
		return rtu.ExtractRegisters(frame), nil
	}
}
