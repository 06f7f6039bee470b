// Package chain implements the Chain Engine (C10): DAG validation of an
// ordered step list, followed by strictly sequential execution with
// "${id}"/"${id.path}" substitution against earlier steps' results.
package chain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Errors surfaced per spec.md §7 / §8 (P6).
var (
	ErrDuplicateStepID = errors.New("chain: duplicate step id")
	ErrForwardReference = errors.New("chain: forward or unknown reference")
	ErrFieldNotFound    = errors.New("chain: field not found in referenced result")
)

// Step is one node of a chain, referencing earlier steps' results through
// "${id.path}" substitution in Args.
type Step struct {
	ID   string
	Tool string
	Args map[string]any
}

// StepReport describes one attempted step's outcome, in execution order.
type StepReport struct {
	ID     string
	Tool   string
	Output any
	Error  string
}

// Report is the chain engine's return value: every attempted step in order,
// plus a final Results snapshot on full success.
type Report struct {
	Steps   []StepReport
	Results map[string]any
	Failed  bool
}

// Dispatch is the narrow view of the Dispatcher the chain engine needs:
// invoke one tool call by name, under a fixed persona.
type Dispatch func(ctx context.Context, toolName string, args map[string]any) (any, error)

// refRE matches "${id}" or "${id.path.to.field}" references.
var refRE = regexp.MustCompile(`\$\{([a-zA-Z0-9_]+)((?:\.[a-zA-Z0-9_]+)*)\}`)

// Engine executes validated chains against a Dispatch function.
type Engine struct {
	dispatch Dispatch
}

// New creates a chain Engine bound to dispatch.
func New(dispatch Dispatch) *Engine {
	return &Engine{dispatch: dispatch}
}

// Validate enforces P6: no referenced id may appear at or after the
// referring step's own position. Must be called, and must succeed, before
// any step executes (§4.10 "runs before any step executes").
func Validate(steps []Step) error {
	seen := make(map[string]int, len(steps))
	for i, s := range steps {
		if _, exists := seen[s.ID]; exists {
			return fmt.Errorf("%w: step index %d id %q", ErrDuplicateStepID, i, s.ID)
		}
		seen[s.ID] = i
	}

	for i, s := range steps {
		for _, ref := range extractRefs(s.Args) {
			pos, ok := seen[ref.id]
			if !ok || pos >= i {
				return fmt.Errorf("%w: step index %d (%q) refers to %q", ErrForwardReference, i, s.ID, ref.id)
			}
		}
	}
	return nil
}

// Run validates steps, then executes them strictly in order, substituting
// references against the accumulated Results dictionary. On the first
// step failure, execution halts and Report.Failed is true; the partial
// report still enumerates every attempted step (§4.10 "Report contract").
func (e *Engine) Run(ctx context.Context, steps []Step) (*Report, error) {
	if err := Validate(steps); err != nil {
		return nil, err
	}

	results := make(map[string]any, len(steps))
	report := &Report{Results: results}

	for _, s := range steps {
		args, err := substitute(s.Args, results)
		if err != nil {
			report.Steps = append(report.Steps, StepReport{ID: s.ID, Tool: s.Tool, Error: err.Error()})
			report.Failed = true
			return report, nil
		}

		out, err := e.dispatch(ctx, s.Tool, args)
		if err != nil {
			report.Steps = append(report.Steps, StepReport{ID: s.ID, Tool: s.Tool, Error: err.Error()})
			report.Failed = true
			return report, nil
		}

		results[s.ID] = out
		report.Steps = append(report.Steps, StepReport{ID: s.ID, Tool: s.Tool, Output: out})
	}

	return report, nil
}

type ref struct {
	id   string
	path []string
}

// extractRefs walks every string value reachable inside args and collects
// every "${id.path}" reference found in it.
func extractRefs(args map[string]any) []ref {
	var out []ref
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			for _, m := range refRE.FindAllStringSubmatch(val, -1) {
				r := ref{id: m[1]}
				if m[2] != "" {
					r.path = strings.Split(strings.TrimPrefix(m[2], "."), ".")
				}
				out = append(out, r)
			}
		case map[string]any:
			for _, v2 := range val {
				walk(v2)
			}
		case []any:
			for _, v2 := range val {
				walk(v2)
			}
		}
	}
	for _, v := range args {
		walk(v)
	}
	return out
}

// substitute replaces every "${id}"/"${id.path}" reference found in args
// with the recorded result (or a navigated field of it), recursively.
func substitute(args map[string]any, results map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		sv, err := substituteValue(v, results)
		if err != nil {
			return nil, err
		}
		out[k] = sv
	}
	return out, nil
}

func substituteValue(v any, results map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return substituteString(val, results)
	case map[string]any:
		return substitute(val, results)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			sv, err := substituteValue(item, results)
			if err != nil {
				return nil, err
			}
			out[i] = sv
		}
		return out, nil
	default:
		return v, nil
	}
}

// substituteString handles the common case of a value that is exactly one
// "${id.path}" reference (returning the referenced value's own type) and
// the general case of references embedded in surrounding text (rendered
// textually).
func substituteString(s string, results map[string]any) (any, error) {
	matches := refRE.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		m := matches[0]
		id := s[m[2]:m[3]]
		var path []string
		if m[4] != m[5] {
			path = strings.Split(strings.TrimPrefix(s[m[4]:m[5]], "."), ".")
		}
		return resolveRef(id, path, results)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		id := s[m[2]:m[3]]
		var path []string
		if m[4] != m[5] {
			path = strings.Split(strings.TrimPrefix(s[m[4]:m[5]], "."), ".")
		}
		val, err := resolveRef(id, path, results)
		if err != nil {
			return nil, err
		}
		b.WriteString(render(val))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func resolveRef(id string, path []string, results map[string]any) (any, error) {
	cur, ok := results[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown step id %q", ErrFieldNotFound, id)
	}
	for _, field := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q.%s (value is not a record)", ErrFieldNotFound, id, field)
		}
		cur, ok = m[field]
		if !ok {
			return nil, fmt.Errorf("%w: %q.%s", ErrFieldNotFound, id, field)
		}
	}
	return cur, nil
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
