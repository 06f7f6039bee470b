package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconnectDBSwapsConnection(t *testing.T) {
	d := newTestDeps(t)
	tool := NewReconnectDB(d)

	params, _ := json.Marshal(map[string]any{"url": "sqlite::memory:"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.True(t, d.Pool.Online())
}

func TestReconnectDBRejectsEmptyURL(t *testing.T) {
	d := newTestDeps(t)
	tool := NewReconnectDB(d)

	params, _ := json.Marshal(map[string]any{"url": ""})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestTestDBConnectionReportsOnline(t *testing.T) {
	d := newTestDeps(t)
	tool := NewTestDBConnection(d)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content[0].Text, `"online": true`)
}

func TestTestDBConnectionReportsOfflineAfterClose(t *testing.T) {
	d := newTestDeps(t)
	require.NoError(t, d.Pool.Close())
	tool := NewTestDBConnection(d)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content[0].Text, `"online": false`)
}
