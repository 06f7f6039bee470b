package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterIconAndGetIconRoundTrip(t *testing.T) {
	d := newTestDeps(t)
	register := NewRegisterIcon(d)

	params, _ := json.Marshal(map[string]any{
		"name": "widget", "format": "svg", "body_base64": "PHN2Zy8+",
	})
	result, err := register.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	icons, err := d.Registry.ListIcons(context.Background())
	require.NoError(t, err)
	require.Len(t, icons, 1)
	require.Equal(t, "widget", icons[0].Name)

	get := NewGetIcon(d)
	getParams, _ := json.Marshal(map[string]any{"name": "widget"})
	getResult, err := get.Execute(context.Background(), getParams)
	require.NoError(t, err)
	require.False(t, getResult.IsError)
	require.Contains(t, getResult.Content[0].Text, "PHN2Zy8+")
}

func TestRegisterIconRejectsBadFormat(t *testing.T) {
	d := newTestDeps(t)
	tool := NewRegisterIcon(d)

	params, _ := json.Marshal(map[string]any{
		"name": "widget", "format": "gif", "body_base64": "xxx",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestGetIconNotFound(t *testing.T) {
	d := newTestDeps(t)
	tool := NewGetIcon(d)

	params, _ := json.Marshal(map[string]any{"name": "missing"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "not found")
}
