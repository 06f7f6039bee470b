// Package audit implements the execution log (C9) and agent notebook that
// make every dispatched call, success or failure, machine-diagnosable.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dynmcp/dynmcp/internal/registry"
)

// Status is the terminal state of one dispatched call.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// resultSummaryLimit bounds ExecutionLog.ResultSummary (§4.9, "on the order
// of a couple of thousand characters").
const resultSummaryLimit = 2000

// serializationFailureMarker replaces an argument value that cannot be
// represented as JSON (§4.9 "best-effort").
const serializationFailureMarker = "<unserializable>"

// Entry is one ExecutionLog row.
type Entry struct {
	ID             string
	Timestamp      time.Time
	ToolName       string
	Persona        string
	Arguments      string
	Status         Status
	ResultSummary  string
	ErrorTraceback string
}

// Audit writes ExecutionLog entries and maintains the agent notebook. Every
// write opens its own short transaction, detached from any caller
// transaction (§4.9, §5 ordering guarantees).
type Audit struct {
	db    *sql.DB
	names registry.NameMapper
}

// New creates an Audit writer over db.
func New(db *sql.DB, names registry.NameMapper) *Audit {
	return &Audit{db: db, names: names}
}

// EnsureSchema creates the execution_log and notebook tables if absent.
func (a *Audit) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY, timestamp TEXT NOT NULL, tool_name TEXT NOT NULL,
			persona TEXT NOT NULL, arguments TEXT, status TEXT NOT NULL,
			result_summary TEXT, error_traceback TEXT
		)`, a.names.Table("execution_log")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			domain TEXT NOT NULL, key TEXT NOT NULL, value TEXT NOT NULL,
			created_at TEXT NOT NULL, updated_at TEXT NOT NULL,
			updated_by TEXT, is_active INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (domain, key)
		)`, a.names.Table("notebook_entries")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT, domain TEXT NOT NULL, key TEXT NOT NULL,
			old_value TEXT, new_value TEXT, changed_at TEXT NOT NULL, changed_by TEXT
		)`, a.names.Table("notebook_history")),
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: ensuring schema: %w", err)
		}
	}
	return nil
}

// Record writes one ExecutionLog entry in its own transaction (P2). now is
// the timestamp to record — callers pass it explicitly so this package
// never calls time.Now() itself, keeping all wall-clock reads at the
// dispatcher boundary.
func (a *Audit) Record(ctx context.Context, now time.Time, toolName, persona string, arguments map[string]any, status Status, resultSummary string, errTraceback string) error {
	id := ulid.Make().String()

	argsJSON := serializeArguments(arguments)
	if len(resultSummary) > resultSummaryLimit {
		resultSummary = resultSummary[:resultSummaryLimit]
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, timestamp, tool_name, persona, arguments, status, result_summary, error_traceback)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, a.names.Table("execution_log")),
		id, now.UTC().Format(time.RFC3339Nano), toolName, persona, argsJSON,
		string(status), resultSummary, errTraceback)
	if err != nil {
		return fmt.Errorf("audit: inserting execution log entry: %w", err)
	}

	return tx.Commit()
}

func serializeArguments(arguments map[string]any) string {
	b, err := json.Marshal(arguments)
	if err != nil {
		return serializationFailureMarker
	}
	return string(b)
}

// LastFailure returns the most recent FAILURE entry, optionally filtered by
// toolName (empty string means "no filter"). Used by get_last_error.
func (a *Audit) LastFailure(ctx context.Context, toolName string) (*Entry, error) {
	query := fmt.Sprintf(
		`SELECT id, timestamp, tool_name, persona, arguments, status, result_summary, error_traceback
		 FROM %s WHERE status = 'FAILURE'`, a.names.Table("execution_log"))
	args := []any{}
	if toolName != "" {
		query += " AND tool_name = ?"
		args = append(args, toolName)
	}
	query += " ORDER BY id DESC LIMIT 1"

	row := a.db.QueryRowContext(ctx, query, args...)
	var e Entry
	var ts string
	if err := row.Scan(&e.ID, &ts, &e.ToolName, &e.Persona, &e.Arguments, &e.Status, &e.ResultSummary, &e.ErrorTraceback); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: loading last failure: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err == nil {
		e.Timestamp = parsed
	}
	return &e, nil
}
