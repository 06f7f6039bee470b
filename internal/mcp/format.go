package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format is the output rendering hint accepted on call_tool (§6 "_format").
type Format string

const (
	FormatJSON Format = "json"
	FormatTOON Format = "toon"
)

// RenderResult renders a dispatched call's result as text, per the
// requested format. json renders indented JSON; toon renders the
// Token-Oriented Object Notation this implementation uses for compact,
// indentation-based rendering of tabular and nested results — denser than
// JSON for the row-shaped output internal/sqlexec produces.
func RenderResult(v any, format Format) (string, error) {
	switch format {
	case FormatTOON:
		return renderTOON(v), nil
	case FormatJSON, "":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("mcp: rendering json: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("mcp: unknown format %q", format)
	}
}

// renderTOON renders v compactly. A slice of uniform maps ("rows", the
// shape internal/sqlexec.Run returns) renders as a header line of column
// names followed by one comma-joined value line per row; anything else
// falls back to indented key: value lines.
func renderTOON(v any) string {
	switch val := v.(type) {
	case []map[string]any:
		return renderTOONRows(val)
	case []interface{}:
		maps, ok := asRows(val)
		if ok {
			return renderTOONRows(maps)
		}
		var lines []string
		for _, item := range val {
			lines = append(lines, renderTOONValue(item, 0))
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		return renderTOONObject(val, 0)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func asRows(items []interface{}) ([]map[string]any, bool) {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		rows = append(rows, m)
	}
	return rows, true
}

func renderTOONRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "(0 rows)"
	}
	cols := sortedKeys(rows[0])

	var b strings.Builder
	fmt.Fprintf(&b, "rows[%d]{%s}:\n", len(rows), strings.Join(cols, ","))
	for _, row := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = scalarString(row[c])
		}
		b.WriteString("  ")
		b.WriteString(strings.Join(vals, ","))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTOONObject(m map[string]any, indent int) string {
	pad := strings.Repeat("  ", indent)
	keys := sortedKeys(m)
	var lines []string
	for _, k := range keys {
		v := m[k]
		switch val := v.(type) {
		case map[string]any:
			lines = append(lines, fmt.Sprintf("%s%s:", pad, k))
			lines = append(lines, renderTOONObject(val, indent+1))
		default:
			lines = append(lines, fmt.Sprintf("%s%s: %s", pad, k, scalarString(val)))
		}
	}
	return strings.Join(lines, "\n")
}

func renderTOONValue(v any, indent int) string {
	switch val := v.(type) {
	case map[string]any:
		return renderTOONObject(val, indent)
	default:
		return scalarString(val)
	}
}

func scalarString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
