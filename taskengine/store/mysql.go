package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Store. github.com/go-sql-driver/mysql
// is a real dependency across the pack (joeycumines-go-utilpkg/sql/mysql
// carries logic lifted directly from its connection.go), adopted here as
// the driver; the MaxOpenConns/MaxIdleConns/ConnMaxLifetime pool tuning
// follows the same database/sql knob family store/sqlite.Store reaches for
// (there tuned down to one serialized connection, here tuned up since MySQL
// tolerates concurrent connections), schema narrowed to the durable-object
// tables this overlay needs.
//
// DSN format: [user[:pass]@][tcp(host:port)]/dbname[?params]
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens (and migrates) a MySQL-backed Store.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("taskengine/store: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("taskengine/store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			uuid VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			objects JSON NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS token_status (
			workflow_id VARCHAR(64) NOT NULL,
			token_id VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			task_counter JSON NOT NULL,
			error_message TEXT,
			PRIMARY KEY (workflow_id, token_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("taskengine/store: create schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *MySQLStore) Close() error { return m.db.Close() }

func (m *MySQLStore) SaveWorkflow(ctx context.Context, rec WorkflowRecord) error {
	objects, err := json.Marshal(rec.Objects)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO workflows (uuid, name, status, objects) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name=VALUES(name), status=VALUES(status), objects=VALUES(objects)
	`, rec.UUID, rec.Name, string(rec.Status), string(objects))
	return err
}

func (m *MySQLStore) LoadWorkflow(ctx context.Context, uuid string) (WorkflowRecord, error) {
	row := m.db.QueryRowContext(ctx, `SELECT uuid, name, status, objects FROM workflows WHERE uuid = ?`, uuid)
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

func (m *MySQLStore) SaveTokenStatus(ctx context.Context, workflowID, tokenID string, status TokenStatus, taskCounter []int) error {
	counter, err := json.Marshal(taskCounter)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO token_status (workflow_id, token_id, status, task_counter) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status=VALUES(status), task_counter=VALUES(task_counter)
	`, workflowID, tokenID, string(status), string(counter))
	return err
}

func (m *MySQLStore) SetTokenError(ctx context.Context, workflowID, tokenID, message string) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE token_status SET error_message = ? WHERE workflow_id = ? AND token_id = ?
	`, message, workflowID, tokenID)
	return err
}

func (m *MySQLStore) LoadTokenStatus(ctx context.Context, workflowID, tokenID string) (TokenStatus, error) {
	row := m.db.QueryRowContext(ctx, `SELECT status FROM token_status WHERE workflow_id = ? AND token_id = ?`, workflowID, tokenID)
	var status string
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return TokenStatus(status), nil
}
