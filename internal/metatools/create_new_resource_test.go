package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateNewResourceRegistersStaticBody(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewResource(d)

	params, _ := json.Marshal(map[string]any{
		"uri": "catalog://welcome", "body": "hello there",
	})

	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetResource(context.Background(), "catalog://welcome", "default")
	require.NoError(t, err)
	require.Equal(t, "hello there", rec.StaticBody)
	require.False(t, rec.IsDynamic)
}

func TestCreateNewResourceRejectsMissingBody(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewResource(d)

	params, _ := json.Marshal(map[string]any{"uri": "catalog://x"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
