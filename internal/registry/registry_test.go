// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "", 0},
		{"", "abc", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLookupByName(t *testing.T) {
	d := mustDefault(t)

	tests := []struct {
		name  string
		query string
		want  uint16
	}{
		{"Exact", "AC output voltage ph_A", 20025},
		{"CaseInsensitive", "ac OUTPUT voltage PH_A", 20025},
		{"OneCharAltered", "AC outpat voltage ph_A", 20025},
		{"OtherPhase", "AC output voltage ph_B", 20033},
		{"Battery", "battery temprature", 20054},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.LookupByName(tt.query); got != tt.want {
				t.Errorf("LookupByName(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestResolve_ReportsExactness(t *testing.T) {
	d := mustDefault(t)
	if e, exact, ok := d.Resolve("Battery voltage"); !ok || !exact || e.Address != 20050 {
		t.Errorf("Resolve exact = %+v %v %v", e, exact, ok)
	}
	if e, exact, ok := d.Resolve("Batery voltage"); !ok || exact || e.Name != "Battery voltage" {
		t.Errorf("Resolve fuzzy = %+v %v %v", e, exact, ok)
	}
}

func TestLookupByName_TieUsesTableOrder(t *testing.T) {
	d := New([]Entry{{Address: 10001, Name: "abc"}, {Address: 10002, Name: "abd"}})
	if got := d.LookupByName("abx"); got != 10001 {
		t.Errorf("tie resolved to %d, want first entry", got)
	}
}

func TestLookupByName_EmptyDirectory(t *testing.T) {
	if got := New(nil).LookupByName("anything"); got != 0 {
		t.Errorf("empty directory returned %d", got)
	}
}

func TestLookupByAddress(t *testing.T) {
	d := mustDefault(t)
	if got := d.LookupByAddress(20025); got != "AC output voltage ph_A" {
		t.Errorf("LookupByAddress(20025) = %q", got)
	}
	if got := d.LookupByAddress(12345); got != UnknownRegister {
		t.Errorf("LookupByAddress(12345) = %q", got)
	}
}

func TestDefault_AddressesInRange(t *testing.T) {
	d := mustDefault(t)
	if d.Len() == 0 {
		t.Fatal("built-in table is empty")
	}
	for _, e := range d.Entries() {
		if e.Address < MinAddress || e.Address > MaxAddress {
			t.Errorf("%q at %d out of range", e.Name, e.Address)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"OutOfRange", "registers:\n  - {address: 9999, name: low}\n"},
		{"EmptyName", "registers:\n  - {address: 10000, name: \"  \"}\n"},
		{"BadYAML", "registers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("Parse() succeeded")
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regs.yaml")
	os.WriteFile(path, []byte("registers:\n  - {address: 10000, name: Custom}\n"), 0644)

	d, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.LookupByName("custom") != 10000 || d.Len() != 1 {
		t.Errorf("custom table not loaded")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}

func mustDefault(t *testing.T) *Directory {
	t.Helper()
	d, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	return d
}

func TestDefault_Shared(t *testing.T) {
	a := mustDefault(t)
	b, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if a != b {
		t.Error("built-in table parsed more than once")
	}
	if got := a.LookupByName("Event log count"); got != 29996 {
		t.Errorf("LookupByName(Event log count) = %d, want 29996", got)
	}
	if got := a.LookupByAddress(MaxAddress); got != UnknownRegister {
		t.Errorf("LookupByAddress(%d) = %q", MaxAddress, got)
	}
}
