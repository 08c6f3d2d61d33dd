// Copyright 2025 The Uplink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logstore persists invocation audit records in SQLite.
package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/uplinkhq/uplink/internal/gateway"
)

// SQLiteStore is a SQLite-backed invocation log.
type SQLiteStore struct {
	db *sql.DB
}

// Config contains SQLite log storage configuration.
type Config struct {
	// Path is the filesystem path to the database file. The special value
	// ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns caps open connections; defaults to 5 (WAL mode handles
	// concurrent readers).
	MaxOpenConns int
}

// New opens (and migrates) a SQLite invocation log.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			request_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			integration TEXT NOT NULL,
			action TEXT NOT NULL,
			connection TEXT,
			params TEXT,
			success INTEGER NOT NULL,
			status_code INTEGER,
			error_code TEXT,
			latency_ms INTEGER NOT NULL,
			retry_count INTEGER NOT NULL,
			response TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_tenant_time ON invocations(tenant_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_integration ON invocations(integration)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// LogInvocation implements gateway.InvocationLogger.
func (s *SQLiteStore) LogInvocation(ctx context.Context, rec *gateway.InvocationRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if rec.RequestID == "" {
		return fmt.Errorf("record request_id is required")
	}

	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	responseJSON, err := json.Marshal(rec.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO invocations (request_id, tenant_id, integration, action, connection,
			params, success, status_code, error_code, latency_ms, retry_count, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			success = excluded.success,
			status_code = excluded.status_code,
			error_code = excluded.error_code,
			latency_ms = excluded.latency_ms,
			retry_count = excluded.retry_count,
			response = excluded.response
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.RequestID, rec.TenantID, rec.Integration, rec.Action, rec.Connection,
		string(paramsJSON), boolToInt(rec.Success), rec.StatusCode, rec.ErrorCode,
		rec.LatencyMs, rec.RetryCount, string(responseJSON), createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store invocation: %w", err)
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	// TenantID is required; invocations are never listed across tenants.
	TenantID string

	// Integration filters by integration slug when set.
	Integration string

	// Since keeps invocations created at or after this time.
	Since *time.Time

	// Limit caps the number of results; defaults to 50.
	Limit int
}

// List returns invocations matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*gateway.InvocationRecord, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	query := `
		SELECT request_id, tenant_id, integration, action, connection,
			params, success, status_code, error_code, latency_ms, retry_count, response, created_at
		FROM invocations WHERE tenant_id = ?
	`
	args := []any{filter.TenantID}

	if filter.Integration != "" {
		query += " AND integration = ?"
		args = append(args, filter.Integration)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	query += " ORDER BY created_at DESC LIMIT ?"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var records []*gateway.InvocationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (*gateway.InvocationRecord, error) {
	var rec gateway.InvocationRecord
	var paramsJSON, responseJSON string
	var success int
	var createdAt int64

	err := rows.Scan(
		&rec.RequestID, &rec.TenantID, &rec.Integration, &rec.Action, &rec.Connection,
		&paramsJSON, &success, &rec.StatusCode, &rec.ErrorCode,
		&rec.LatencyMs, &rec.RetryCount, &responseJSON, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan invocation: %w", err)
	}

	rec.Success = success != 0
	rec.CreatedAt = time.Unix(0, createdAt)
	if paramsJSON != "" && paramsJSON != "null" {
		if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}
	if responseJSON != "" && responseJSON != "null" {
		if err := json.Unmarshal([]byte(responseJSON), &rec.Response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return &rec, nil
}

// DeleteOlderThan removes invocations created before the given time and
// returns how many were removed.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM invocations WHERE created_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old invocations: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
