package validator

import "github.com/dynmcp/dynmcp/internal/registry"

// defaultPolicies is the built-in deny list applied when a script's active
// policy set is empty (§3 SecurityPolicy invariant: "an empty active set
// means apply built-in defaults"). Each rule covers one module, function,
// or attribute that grants arbitrary OS, subprocess, dynamic-import,
// serialization, or filesystem access — the same modules the teacher's
// internal/guards package would flag if it had scripts to police, expressed
// here as data instead of one Go var per rule since the set is large and
// mechanically enumerable.
var defaultPolicies = buildDefaultPolicies()

func buildDefaultPolicies() []registry.SecurityPolicy {
	deny := func(category registry.PolicyCategory, pattern, desc string) registry.SecurityPolicy {
		return registry.SecurityPolicy{
			RuleType: registry.RuleDeny, Category: category, Pattern: pattern,
			IsActive: true, Description: desc,
		}
	}

	var policies []registry.SecurityPolicy

	// Arbitrary OS / subprocess / dynamic-import / filesystem access.
	for _, mod := range []string{"os/exec", "syscall", "plugin", "net", "os/signal", "io/ioutil"} {
		policies = append(policies, deny(registry.CategoryModule, mod, "grants OS, process, or arbitrary filesystem access"))
	}
	// Serialization modules capable of arbitrary code execution on decode.
	for _, mod := range []string{"encoding/gob", "unsafe"} {
		policies = append(policies, deny(registry.CategoryModule, mod, "grants unsafe memory or arbitrary deserialization"))
	}

	// Dynamic evaluation, arbitrary file I/O, interactive input, process exit.
	for _, fn := range []string{"exec", "eval", "panic"} {
		policies = append(policies, deny(registry.CategoryFunction, fn, "dynamic evaluation or abrupt process control is not permitted in stored scripts"))
	}

	// Attribute access equivalent to "module.method" dangerous calls.
	for _, attr := range []string{"os.Exit", "os.RemoveAll", "os.Remove", "exec.Command"} {
		policies = append(policies, deny(registry.CategoryAttribute, attr, "grants filesystem mutation or process control"))
	}

	return policies
}
