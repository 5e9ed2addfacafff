// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package cache gates expensive refreshes behind a per-key time-to-live.
package cache

import (
	"sync"
	"time"
)

// DefaultMaxAge is the TTL used when none is configured.
const DefaultMaxAge = 500 * time.Millisecond

type entry struct {
	at      time.Time
	set     bool
	forever bool
}

// Tracker records when each key of a fixed key space [0, n) was last
// refreshed. Due and Mark expect the caller to hold the tracker's lock;
// Ensure takes it itself.
type Tracker[K ~int] struct {
	MaxAge time.Duration
	// Now is replaced in tests.
	Now func() time.Time

	lock    sync.Locker
	entries []entry
}

// New returns a tracker for n keys guarded by l. A nil l gets a private mutex.
func New[K ~int](l sync.Locker, n int, maxAge time.Duration) *Tracker[K] {
	if l == nil {
		l = &sync.Mutex{}
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Tracker[K]{
		MaxAge:  maxAge,
		Now:     time.Now,
		lock:    l,
		entries: make([]entry, n),
	}
}

// Due reports whether key needs a refresh. A run-once key is due only until
// its first successful refresh.
func (t *Tracker[K]) Due(key K) bool {
	e := t.entries[key]
	if !e.set {
		return true
	}
	if e.forever {
		return false
	}
	return t.Now().Sub(e.at) > t.MaxAge
}

// Mark records a successful refresh of key.
func (t *Tracker[K]) Mark(key K, runOnce bool) {
	t.entries[key] = entry{at: t.Now(), set: true, forever: runOnce}
}

// Last returns the time of the last refresh of key.
func (t *Tracker[K]) Last(key K) (time.Time, bool) {
	e := t.entries[key]
	return e.at, e.set
}

// Ensure refreshes key when it is due and returns get(), all under the
// tracker's lock. A failed refresh leaves the key due and returns the error.
func Ensure[K ~int, V any](t *Tracker[K], key K, runOnce bool, refresh func() error, get func() V) (V, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.Due(key) {
		if err := refresh(); err != nil {
			var zero V
			return zero, err
		}
		t.Mark(key, runOnce)
	}
	return get(), nil
}
