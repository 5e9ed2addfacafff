// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mirror

import (
	"database/sql"
	"fmt"
	"log/slog"
)

const upsertRegister = "INSERT INTO ups_registers (table_type, address, value) VALUES (?, ?, ?) " +
	"ON CONFLICT(table_type, address) DO UPDATE SET value=excluded.value"

// SQLStorage keeps one row per register that was ever written.
// The driver (e.g. sqlite3) must be registered by the main package.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	model  *DataModel
}

// NewSQLStorage creates a new SQLStorage.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Load connects to the DB and loads the stored registers.
func (s *SQLStorage) Load() (*DataModel, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	m := NewDataModel()
	s.model = m

	rows, err := db.Query("SELECT table_type, address, value FROM ups_registers")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query registers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t, addr, val int
		if err := rows.Scan(&t, &addr, &val); err != nil {
			continue
		}
		if addr < 0 || addr > MaxAddress {
			continue
		}

		switch TableType(t) {
		case TableHoldingRegisters:
			m.HoldingRegisters[addr] = uint16(val)
		case TableInputRegisters:
			m.InputRegisters[addr] = uint16(val)
		}
	}

	return m, rows.Err()
}

func (s *SQLStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS ups_registers (
		table_type INTEGER,
		address INTEGER,
		value INTEGER,
		PRIMARY KEY (table_type, address)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save is a no-op; OnWrite persists every change as it happens.
func (s *SQLStorage) Save(m *DataModel) error {
	return nil
}

// OnWrite upserts the changed range in one transaction.
func (s *SQLStorage) OnWrite(table TableType, address, quantity uint16) {
	if s.db == nil || s.model == nil {
		return
	}

	values, err := s.model.Registers(table, address, quantity)
	if err != nil {
		slog.Error("Failed to read registers for persistence", "table", table, "addr", address, "err", err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("Failed to begin transaction", "err", err)
		return
	}
	for i, val := range values {
		addr := int(address) + i
		if _, err := tx.Exec(upsertRegister, int(table), addr, int64(val)); err != nil {
			slog.Error("Failed to persist register", "table", table, "addr", addr, "err", err)
			tx.Rollback()
			return
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("Failed to commit registers", "table", table, "addr", address, "err", err)
	}
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
