package registry

import "fmt"

// NameMapper resolves logical table names to physical ones, honoring an
// optional schema prefix and per-table overrides (spec.md §6, "Persisted
// state layout" / "enterprise deployments").
type NameMapper struct {
	Prefix    string
	Overrides map[string]string
}

// defaultNames are the logical table names the Registry owns.
var defaultNames = []string{
	"tools", "resources", "prompts", "macros", "icons", "policies",
	"execution_log", "notebook_entries", "notebook_history", "artifacts",
}

// Table resolves the physical name for a logical table.
func (m NameMapper) Table(logical string) string {
	if m.Overrides != nil {
		if name, ok := m.Overrides[logical]; ok && name != "" {
			return name
		}
	}
	if m.Prefix != "" {
		return fmt.Sprintf("%s%s", m.Prefix, logical)
	}
	return logical
}
