package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SelfCorrectionDomain is the reserved notebook domain the dispatcher's
// failure handler appends lessons to (§3 NotebookEntry).
const SelfCorrectionDomain = "self_correction"

// NotebookEntry is one (domain, key) row of agent memory.
type NotebookEntry struct {
	Domain    string
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string
	IsActive  bool
}

// AppendNotebook appends newValue to the entry keyed by (domain, key) as a
// line of the form "[<UTC RFC3339Nano time>] newValue": if the entry
// doesn't exist it is created with that line as its value; if it does, its
// value becomes `old value + "\n" + line` rather than being overwritten (§4.9: the
// self_correction domain "is append-only: each failure appends a new
// timestamped line ... rather than overwriting"), and a history row is
// written regardless (§3 NotebookHistory — "for every update").
func (a *Audit) AppendNotebook(ctx context.Context, now time.Time, domain, key, newValue, updatedBy string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit: beginning notebook transaction: %w", err)
	}
	defer tx.Rollback()

	var oldValue string
	var createdAt string
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT value, created_at FROM %s WHERE domain = ? AND key = ?`, a.names.Table("notebook_entries")),
		domain, key)
	err = row.Scan(&oldValue, &createdAt)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("audit: loading notebook entry: %w", err)
	}

	nowStr := now.UTC().Format(time.RFC3339Nano)
	line := fmt.Sprintf("[%s] %s", nowStr, newValue)

	var combined string
	if exists && oldValue != "" {
		combined = oldValue + "\n" + line
	} else {
		combined = line
	}

	if exists {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s SET value = ?, updated_at = ?, updated_by = ?, is_active = 1 WHERE domain = ? AND key = ?`,
			a.names.Table("notebook_entries")),
			combined, nowStr, updatedBy, domain, key)
	} else {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (domain, key, value, created_at, updated_at, updated_by, is_active) VALUES (?, ?, ?, ?, ?, ?, 1)`,
			a.names.Table("notebook_entries")),
			domain, key, combined, nowStr, nowStr, updatedBy)
	}
	if err != nil {
		return fmt.Errorf("audit: upserting notebook entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (domain, key, old_value, new_value, changed_at, changed_by) VALUES (?, ?, ?, ?, ?, ?)`,
		a.names.Table("notebook_history")),
		domain, key, oldValue, combined, nowStr, updatedBy)
	if err != nil {
		return fmt.Errorf("audit: inserting notebook history: %w", err)
	}

	return tx.Commit()
}

// GetNotebook returns the current value of (domain, key), or ok=false if no
// active entry exists.
func (a *Audit) GetNotebook(ctx context.Context, domain, key string) (value string, ok bool, err error) {
	row := a.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT value FROM %s WHERE domain = ? AND key = ? AND is_active = 1`, a.names.Table("notebook_entries")),
		domain, key)
	if scanErr := row.Scan(&value); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("audit: loading notebook entry: %w", scanErr)
	}
	return value, true, nil
}

// SelfCorrectionKey returns the notebook key the dispatcher writes to for a
// given tool's failures ("tool_name + _error", §4.9).
func SelfCorrectionKey(toolName string) string {
	return toolName + "_error"
}
