package registry

import "testing"

func TestNameMapperDefault(t *testing.T) {
	m := NameMapper{}
	if got := m.Table("tools"); got != "tools" {
		t.Fatalf("got %q, want %q", got, "tools")
	}
}

func TestNameMapperPrefix(t *testing.T) {
	m := NameMapper{Prefix: "dynmcp_"}
	if got := m.Table("tools"); got != "dynmcp_tools" {
		t.Fatalf("got %q, want %q", got, "dynmcp_tools")
	}
}

func TestNameMapperOverrideWinsOverPrefix(t *testing.T) {
	m := NameMapper{Prefix: "dynmcp_", Overrides: map[string]string{"tools": "custom_tools"}}
	if got := m.Table("tools"); got != "custom_tools" {
		t.Fatalf("got %q, want %q", got, "custom_tools")
	}
	if got := m.Table("resources"); got != "dynmcp_resources" {
		t.Fatalf("got %q, want %q", got, "dynmcp_resources")
	}
}

func TestNameMapperEmptyOverrideFallsBackToPrefix(t *testing.T) {
	m := NameMapper{Prefix: "p_", Overrides: map[string]string{"tools": ""}}
	if got := m.Table("tools"); got != "p_tools" {
		t.Fatalf("got %q, want %q", got, "p_tools")
	}
}
