// Package template implements the Template Engine Adapter (C4): it renders
// a SQL template with a macro prelude and a bound-argument bag. Rendering
// expands conditional blocks and macro calls; it never interpolates values
// into SQL text — every value travels through parameter binding (":name")
// at execution time (internal/sqlexec), not through this package.
package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/viant/velty"

	"github.com/dynmcp/dynmcp/internal/registry"
)

// Engine renders SQL artifact bodies against an active macro prelude.
type Engine struct{}

// New creates a template Engine.
func New() *Engine { return &Engine{} }

// Prelude concatenates the given macro templates in name order (the
// deterministic tiebreak this implementation uses for "textual order",
// see DESIGN.md/P8) into a single prelude string prepended to every render.
func Prelude(macros []registry.MacroRecord) string {
	sorted := make([]registry.MacroRecord, len(macros))
	copy(sorted, macros)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, m := range sorted {
		b.WriteString(m.Template)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSQL renders body, prefixed by prelude, against arguments. Arguments
// is the raw argument bag made available to the template as the "arguments"
// variable, following the teacher-pack's velty wrapper
// (viant-agently/internal/templating/velty.go): variables are defined at
// compile time and populated at execution time.
func (e *Engine) RenderSQL(prelude, body string, arguments map[string]any) (string, error) {
	full := prelude + body

	planner := velty.New()
	vars := map[string]any{"arguments": arguments}
	for k, v := range vars {
		if err := planner.DefineVariable(k, v); err != nil {
			return "", fmt.Errorf("template: defining variable %q: %w", k, err)
		}
	}

	exec, newState, err := planner.Compile([]byte(full))
	if err != nil {
		return "", fmt.Errorf("template: compiling: %w", err)
	}

	state := newState()
	for k, v := range vars {
		if err := state.SetValue(k, v); err != nil {
			return "", fmt.Errorf("template: setting variable %q: %w", k, err)
		}
	}

	if err := exec.Exec(state); err != nil {
		return "", fmt.Errorf("template: executing: %w", err)
	}

	return string(state.Buffer.Bytes()), nil
}
