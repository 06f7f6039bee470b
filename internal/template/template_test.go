package template

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/registry"
)

func TestPreludeOrdersMacrosByName(t *testing.T) {
	macros := []registry.MacroRecord{
		{Name: "zeta", Template: "ZETA"},
		{Name: "alpha", Template: "ALPHA"},
	}
	got := Prelude(macros)
	wantOrder := []int{
		indexOf(got, "ALPHA"),
		indexOf(got, "ZETA"),
	}
	require.Less(t, wantOrder[0], wantOrder[1], "alpha macro text should precede zeta macro text")
}

func TestPreludeEmptyMacroSet(t *testing.T) {
	require.Equal(t, "", Prelude(nil))
}

func TestPreludeDoesNotMutateInput(t *testing.T) {
	macros := []registry.MacroRecord{
		{Name: "b", Template: "B"},
		{Name: "a", Template: "A"},
	}
	_ = Prelude(macros)
	require.Equal(t, "b", macros[0].Name, "Prelude must not reorder the caller's slice in place")
}

func TestRenderSQLPassesThroughLiteralBody(t *testing.T) {
	e := New()
	out, err := e.RenderSQL("", "SELECT * FROM widgets", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM widgets", out)
}

func TestRenderSQLPrependsPrelude(t *testing.T) {
	e := New()
	out, err := e.RenderSQL("-- prelude\n", "SELECT 1", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "-- prelude\nSELECT 1", out)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
