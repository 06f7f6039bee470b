// Package validator implements the structural checks on imperative script
// artifacts and SQL artifacts (C3). It does not and cannot make arbitrary
// stored scripts safe; it narrows the shape of what the Executor will
// accept — containment is a capability-set concern of internal/scriptexec,
// not this package.
package validator

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/dynmcp/dynmcp/internal/registry"
)

// Errors surfaced to callers per spec.md §7.
var (
	ErrInvalidStructure   = errors.New("validator: invalid structure")
	ErrNotReadOnly        = errors.New("validator: statement is not read-only")
	ErrMultipleStatements = errors.New("validator: multiple statements")
	ErrPolicyViolation    = errors.New("validator: policy violation")
)

// PolicyViolation carries the category/pattern that matched, per spec.md §7.
type PolicyViolation struct {
	Category registry.PolicyCategory
	Pattern  string
	Name     string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("%s: denied %s %q matches policy pattern %q", ErrPolicyViolation, e.Category, e.Name, e.Pattern)
}

func (e *PolicyViolation) Unwrap() error { return ErrPolicyViolation }

// Validator holds the active policy set and exposes the two entry points
// spec.md §4.3 describes.
type Validator struct {
	policies []registry.SecurityPolicy
}

// New creates a Validator over an explicit policy set. An empty (nil) set
// means "apply built-in defaults" (§3 SecurityPolicy invariant).
func New(policies []registry.SecurityPolicy) *Validator {
	return &Validator{policies: policies}
}

func (v *Validator) effectivePolicies() []registry.SecurityPolicy {
	if len(v.policies) == 0 {
		return defaultPolicies
	}
	return v.policies
}

// ValidateScript parses body as Go source and enforces that its top level
// contains only import declarations, type declarations (the "class
// definition" of a Go artifact), and methods (FuncDecl with a receiver,
// which in Go can only ever appear at top level and are therefore treated
// as part of the class they're declared against). Any other top-level form
// — a bare function, a var/const declaration, or a top-level statement — is
// a fatal ErrInvalidStructure, mirroring spec.md §4.3's "only imports and
// class definitions" rule adapted to Go's grammar.
func (v *Validator) ValidateScript(body string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "artifact.go", body, parser.AllErrors)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.IMPORT && d.Tok != token.TYPE {
				return fmt.Errorf("%w: top-level %s declaration is not permitted", ErrInvalidStructure, d.Tok)
			}
		case *ast.FuncDecl:
			if d.Recv == nil {
				return fmt.Errorf("%w: top-level function %q has no receiver (bare functions are not permitted; only methods on a class type)", ErrInvalidStructure, d.Name.Name)
			}
		default:
			return fmt.Errorf("%w: unsupported top-level declaration", ErrInvalidStructure)
		}
	}

	return v.walkPolicies(file)
}

// walkPolicies inspects every import, call, and selector expression in the
// parsed file against the active policy set (§4.3 "Walks every import
// node"/"Walks every call node and attribute access").
func (v *Validator) walkPolicies(file *ast.File) error {
	policies := v.effectivePolicies()

	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if err := checkPattern(policies, registry.CategoryModule, path); err != nil {
			return err
		}
	}

	var walkErr error
	ast.Inspect(file, func(n ast.Node) bool {
		if walkErr != nil {
			return false
		}
		switch expr := n.(type) {
		case *ast.CallExpr:
			if ident, ok := expr.Fun.(*ast.Ident); ok {
				if err := checkPattern(policies, registry.CategoryFunction, ident.Name); err != nil {
					walkErr = err
					return false
				}
			}
		case *ast.SelectorExpr:
			if ident, ok := expr.X.(*ast.Ident); ok {
				full := ident.Name + "." + expr.Sel.Name
				if err := checkPattern(policies, registry.CategoryAttribute, full); err != nil {
					walkErr = err
					return false
				}
			}
		}
		return true
	})
	return walkErr
}

// checkPattern applies deny-wins-over-allow precedence for a single name
// against the policy set. A deny match is always fatal. When an explicit
// allow-list for the category exists and name matches none of it, the name
// is rejected too ("any name not explicitly allowed when an explicit
// allow-list ... is present").
func checkPattern(policies []registry.SecurityPolicy, category registry.PolicyCategory, name string) error {
	var hasAllowList bool
	var allowed bool

	for _, p := range policies {
		if !p.IsActive || p.Category != category {
			continue
		}
		if !matchPattern(p.Pattern, name) {
			continue
		}
		if p.RuleType == registry.RuleDeny {
			return &PolicyViolation{Category: category, Pattern: p.Pattern, Name: name}
		}
	}

	for _, p := range policies {
		if !p.IsActive || p.Category != category || p.RuleType != registry.RuleAllow {
			continue
		}
		hasAllowList = true
		if matchPattern(p.Pattern, name) {
			allowed = true
		}
	}

	if hasAllowList && !allowed {
		return &PolicyViolation{Category: category, Pattern: "(not in allow-list)", Name: name}
	}
	return nil
}

// matchPattern supports an exact match or a "prefix." submodule match
// (e.g. pattern "os" matches "os" and "os/exec").
func matchPattern(pattern, name string) bool {
	if pattern == name {
		return true
	}
	return strings.HasPrefix(name, pattern+"/") || strings.HasPrefix(name, pattern+".")
}
