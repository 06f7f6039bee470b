package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterMacroAcceptsWellFormedBody(t *testing.T) {
	d := newTestDeps(t)
	tool := NewRegisterMacro(d)

	params, _ := json.Marshal(map[string]any{
		"name":     "active_only",
		"template": "#macro(active_only) WHERE active = 1 #end",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	macros, err := d.Registry.ActiveMacros(context.Background())
	require.NoError(t, err)
	require.Len(t, macros, 1)
	require.Equal(t, "active_only", macros[0].Name)
}

func TestRegisterMacroRejectsMalformedBody(t *testing.T) {
	d := newTestDeps(t)
	tool := NewRegisterMacro(d)

	params, _ := json.Marshal(map[string]any{
		"name": "broken", "template": "not a macro at all",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "malformed macro body")

	macros, err := d.Registry.ActiveMacros(context.Background())
	require.NoError(t, err)
	require.Empty(t, macros)
}

func TestRegisterMacroRejectsMissingFields(t *testing.T) {
	d := newTestDeps(t)
	tool := NewRegisterMacro(d)

	params, _ := json.Marshal(map[string]any{"name": "x"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
