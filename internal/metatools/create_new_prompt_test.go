package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateNewPromptRegistersTemplate(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewPrompt(d)

	params, _ := json.Marshal(map[string]any{
		"name":     "summarize",
		"template": "Summarize: {rows}",
		"arguments": []map[string]any{
			{"name": "rows", "required": true},
		},
	})

	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetPrompt(context.Background(), "summarize", "default")
	require.NoError(t, err)
	require.Equal(t, "Summarize: {rows}", rec.Template)
	require.Len(t, rec.ArgumentsSchema, 1)
}

func TestCreateNewPromptRejectsMissingTemplate(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewPrompt(d)

	params, _ := json.Marshal(map[string]any{"name": "x"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
