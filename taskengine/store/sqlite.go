package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file Store backend, grounded on store/sqlite's
// Store: same pure-Go modernc.org/sqlite driver, same SetMaxOpenConns(1)
// single-connection pool so all goroutines serialize through one connection
// instead of tripping SQLITE_BUSY, schema narrowed to the two durable-object
// tables this overlay actually needs (workflow records and token status)
// rather than that store's document/chunk/message schema.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed Store at path. Use
// ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("taskengine/store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("taskengine/store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			uuid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			objects TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS token_status (
			workflow_id TEXT NOT NULL,
			token_id TEXT NOT NULL,
			status TEXT NOT NULL,
			task_counter TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (workflow_id, token_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("taskengine/store: create schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveWorkflow(ctx context.Context, rec WorkflowRecord) error {
	objects, err := json.Marshal(rec.Objects)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (uuid, name, status, objects) VALUES (?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET name=excluded.name, status=excluded.status, objects=excluded.objects
	`, rec.UUID, rec.Name, string(rec.Status), string(objects))
	return err
}

func (s *SQLiteStore) LoadWorkflow(ctx context.Context, uuid string) (WorkflowRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT uuid, name, status, objects FROM workflows WHERE uuid = ?`, uuid)
	var rec WorkflowRecord
	var status, objects string
	if err := row.Scan(&rec.UUID, &rec.Name, &status, &objects); err != nil {
		if err == sql.ErrNoRows {
			return WorkflowRecord{}, ErrNotFound
		}
		return WorkflowRecord{}, err
	}
	rec.Status = WorkflowStatus(status)
	if err := json.Unmarshal([]byte(objects), &rec.Objects); err != nil {
		return WorkflowRecord{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) SaveTokenStatus(ctx context.Context, workflowID, tokenID string, status TokenStatus, taskCounter []int) error {
	counter, err := json.Marshal(taskCounter)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO token_status (workflow_id, token_id, status, task_counter) VALUES (?, ?, ?, ?)
		ON CONFLICT(workflow_id, token_id) DO UPDATE SET status=excluded.status, task_counter=excluded.task_counter
	`, workflowID, tokenID, string(status), string(counter))
	return err
}

func (s *SQLiteStore) SetTokenError(ctx context.Context, workflowID, tokenID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE token_status SET error_message = ? WHERE workflow_id = ? AND token_id = ?
	`, message, workflowID, tokenID)
	return err
}

func (s *SQLiteStore) LoadTokenStatus(ctx context.Context, workflowID, tokenID string) (TokenStatus, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status FROM token_status WHERE workflow_id = ? AND token_id = ?`, workflowID, tokenID)
	var status string
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return TokenStatus(status), nil
}
