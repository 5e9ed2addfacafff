// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package telemetry exports client diagnostics and device readings to Prometheus.
package telemetry

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ffutop/ups-modbus/modbus"
)

const namespace = "ups_modbus"

// Exchange results.
const (
	ResultOK        = "ok"
	ResultTimeout   = "timeout"
	ResultMalformed = "malformed"
	ResultCRC       = "crc"
	ResultLength    = "length"
	ResultException = "exception"
	ResultError     = "error"
)

// Metrics counts wire exchanges and buffer under-runs per operation.
type Metrics struct {
	UnderRuns *prometheus.CounterVec
	Exchanges *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UnderRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_underruns_total",
			Help:      "Responses that needed more than one poll step after the base delay.",
		}, []string{"operation"}),
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Request/response exchanges by operation and result.",
		}, []string{"operation", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.UnderRuns, m.Exchanges)
	}
	return m
}

// ObserveUnderRun matches the adaptive reader's OnUnderRun hook.
func (m *Metrics) ObserveUnderRun(operation string, waited time.Duration) {
	slog.Debug("buffer under-run", "operation", operation, "waited", waited)
	m.UnderRuns.WithLabelValues(operation).Inc()
}

// ObserveExchange counts one exchange outcome.
func (m *Metrics) ObserveExchange(operation string, err error) {
	m.Exchanges.WithLabelValues(operation, Result(err)).Inc()
}

// Result classifies an exchange error.
func Result(err error) string {
	var ex *modbus.ExceptionError
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, modbus.ErrTimeout):
		return ResultTimeout
	case errors.Is(err, modbus.ErrMalformedFrame):
		return ResultMalformed
	case errors.Is(err, modbus.ErrCRCMismatch):
		return ResultCRC
	case errors.Is(err, modbus.ErrUnexpectedLength):
		return ResultLength
	case errors.As(err, &ex):
		return ResultException
	default:
		return ResultError
	}
}
