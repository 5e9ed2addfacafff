// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package registry maps register addresses to human-readable names.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// UnknownRegister is the name of an address missing from the directory.
const UnknownRegister = "Unknown Register"

// Addresses outside this range are rejected when a table is parsed.
const (
	MinAddress = 10000
	MaxAddress = 30000
)

//go:embed registers.yaml
var defaultTable []byte

// Entry is one directory row.
type Entry struct {
	Address uint16 `yaml:"address"`
	Name    string `yaml:"name"`
}

type table struct {
	Registers []Entry `yaml:"registers"`
}

// Directory is immutable once built.
type Directory struct {
	entries []Entry
	byAddr  map[uint16]string
	byName  map[string]uint16
}

// New builds a directory. Earlier entries win on duplicate addresses or names.
func New(entries []Entry) *Directory {
	d := &Directory{
		entries: append([]Entry(nil), entries...),
		byAddr:  make(map[uint16]string, len(entries)),
		byName:  make(map[string]uint16, len(entries)),
	}
	for _, e := range d.entries {
		if _, ok := d.byAddr[e.Address]; !ok {
			d.byAddr[e.Address] = e.Name
		}
		key := strings.ToLower(e.Name)
		if _, ok := d.byName[key]; !ok {
			d.byName[key] = e.Address
		}
	}
	return d
}

// Parse reads a YAML table.
func Parse(data []byte) (*Directory, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse register table: %w", err)
	}
	for i, e := range t.Registers {
		if e.Address < MinAddress || e.Address > MaxAddress {
			return nil, fmt.Errorf("register %d (%q): address %d outside %d-%d", i, e.Name, e.Address, MinAddress, MaxAddress)
		}
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("register %d (address %d): empty name", i, e.Address)
		}
	}
	return New(t.Registers), nil
}

// Load reads the table at path, or the built-in table when path is empty.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read register table: %w", err)
	}
	return Parse(data)
}

var builtin = sync.OnceValues(func() (*Directory, error) {
	d, err := Parse(defaultTable)
	if err != nil {
		return nil, fmt.Errorf("built-in register table: %w", err)
	}
	return d, nil
})

// Default returns the built-in directory. The table is parsed once and the
// directory is shared.
func Default() (*Directory, error) {
	return builtin()
}

// Entries returns the rows in table order.
func (d *Directory) Entries() []Entry {
	return append([]Entry(nil), d.entries...)
}

func (d *Directory) Len() int { return len(d.entries) }

// LookupByAddress never fails; unknown addresses yield UnknownRegister.
func (d *Directory) LookupByAddress(addr uint16) string {
	if name, ok := d.byAddr[addr]; ok {
		return name
	}
	return UnknownRegister
}

// LookupByName returns the address of name, falling back to the closest
// name by edit distance. It returns 0 for an empty directory.
func (d *Directory) LookupByName(name string) uint16 {
	e, _, ok := d.Resolve(name)
	if !ok {
		return 0
	}
	return e.Address
}

// Resolve is LookupByName that also reports the matched entry and whether
// the match was exact.
func (d *Directory) Resolve(name string) (e Entry, exact bool, ok bool) {
	if addr, found := d.byName[strings.ToLower(name)]; found {
		return Entry{Address: addr, Name: d.byAddr[addr]}, true, true
	}
	if len(d.entries) == 0 {
		return Entry{}, false, false
	}

	query := strings.ToLower(name)
	best, bestDist := 0, -1
	for i, cand := range d.entries {
		dist := Distance(query, strings.ToLower(cand.Name))
		if bestDist < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return d.entries[best], false, true
}

// Distance is the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
