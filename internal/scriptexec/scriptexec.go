// Package scriptexec implements the Script Executor (C7): it instantiates a
// plugin-style tool class under a controlled capability set and invokes it.
//
// Artifacts of kind "script" are Go source files (package main, §9's
// REDESIGN FLAGS "Plugin class discovery" decision — see DESIGN.md). The
// validator (internal/validator) already confirmed the top level holds only
// imports, type declarations, and receiver methods; this package is
// responsible only for evaluating that source under a restricted symbol
// set and locating the one type that implements Tool.
package scriptexec

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/dynmcp/dynmcp/internal/validator"
)

// Errors surfaced per spec.md §7 "AmbiguousToolClass / NoToolClass".
var (
	ErrNoToolClass        = errors.New("scriptexec: no type implements Tool")
	ErrAmbiguousToolClass = errors.New("scriptexec: more than one type implements Tool")
)

// Executor evaluates script artifacts and runs their Tool instance.
type Executor struct {
	val *validator.Validator
}

// New creates a script Executor.
func New(val *validator.Validator) *Executor {
	return &Executor{val: val}
}

// Run validates body, evaluates it in a fresh interpreter seeded with the
// toolkit capability symbols, locates the sole Tool implementation, wires
// ctx into it if it accepts one, and invokes Run(arguments).
func (e *Executor) Run(_ context.Context, body string, arguments map[string]interface{}, toolCtx *Context) (interface{}, error) {
	if err := e.val.ValidateScript(body); err != nil {
		return nil, err
	}

	typeNames, err := topLevelTypeNames(body)
	if err != nil {
		return nil, fmt.Errorf("scriptexec: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("scriptexec: loading stdlib symbols: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("scriptexec: loading toolkit symbols: %w", err)
	}

	if _, err := i.Eval(body); err != nil {
		return nil, fmt.Errorf("scriptexec: evaluating artifact: %w", err)
	}

	instance, err := locateTool(i, typeNames)
	if err != nil {
		return nil, err
	}

	if receiver, ok := instance.(ContextReceiver); ok {
		receiver.SetContext(toolCtx)
	}

	return instance.Run(arguments)
}

// topLevelTypeNames re-parses body (already structurally validated) to
// collect its top-level type declaration names, the Go expression of
// "enumerate classes in the namespace" (§4.7 step 4).
func topLevelTypeNames(body string) ([]string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "artifact.go", body, 0)
	if err != nil {
		return nil, fmt.Errorf("re-parsing artifact: %w", err)
	}

	var names []string
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			if ts, ok := spec.(*ast.TypeSpec); ok {
				names = append(names, ts.Name.Name)
			}
		}
	}
	return names, nil
}

// locateTool tries both value and pointer receivers of each candidate type
// against Tool, since idiomatic Go tool classes implement Run on a pointer
// receiver (to hold mutable state set via SetContext) but nothing in the
// structural validation forces that.
func locateTool(i *interp.Interpreter, typeNames []string) (Tool, error) {
	var found []Tool

	for _, name := range typeNames {
		if v, ok := tryAsTool(i, "main."+name+"{}"); ok {
			found = append(found, v)
			continue
		}
		if v, ok := tryAsTool(i, "&main."+name+"{}"); ok {
			found = append(found, v)
		}
	}

	switch len(found) {
	case 0:
		return nil, ErrNoToolClass
	case 1:
		return found[0], nil
	default:
		return nil, ErrAmbiguousToolClass
	}
}

func tryAsTool(i *interp.Interpreter, expr string) (Tool, bool) {
	v, err := i.Eval(expr)
	if err != nil {
		return nil, false
	}
	if !v.CanInterface() {
		return nil, false
	}
	tool, ok := v.Interface().(Tool)
	return tool, ok
}
