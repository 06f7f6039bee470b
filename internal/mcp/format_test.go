package mcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderResultJSONDefault(t *testing.T) {
	out, err := RenderResult(map[string]any{"a": 1}, "")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, out)
}

func TestRenderResultUnknownFormat(t *testing.T) {
	_, err := RenderResult(1, Format("xml"))
	require.Error(t, err)
}

func TestRenderResultTOONRowsRenders(t *testing.T) {
	rows := []map[string]any{
		{"id": 1, "name": "first"},
		{"id": 2, "name": "second"},
	}
	out, err := RenderResult(rows, FormatTOON)
	require.NoError(t, err)
	require.Contains(t, out, "rows[2]{id,name}:")
	require.Contains(t, out, "1,first")
	require.Contains(t, out, "2,second")
}

func TestRenderResultTOONEmptyRows(t *testing.T) {
	out, err := RenderResult([]map[string]any{}, FormatTOON)
	require.NoError(t, err)
	require.Equal(t, "(0 rows)", out)
}

func TestRenderResultTOONObject(t *testing.T) {
	out, err := RenderResult(map[string]any{"b": 2, "a": 1}, FormatTOON)
	require.NoError(t, err)
	require.Equal(t, "a: 1\nb: 2", out)
}

func TestRenderResultTOONNestedObject(t *testing.T) {
	out, err := RenderResult(map[string]any{"outer": map[string]any{"inner": 1}}, FormatTOON)
	require.NoError(t, err)
	require.Contains(t, out, "outer:")
	require.Contains(t, out, "  inner: 1")
}

func TestRenderResultTOONInterfaceSliceOfRows(t *testing.T) {
	rows := []interface{}{
		map[string]any{"id": 1},
		map[string]any{"id": 2},
	}
	out, err := RenderResult(rows, FormatTOON)
	require.NoError(t, err)
	require.Contains(t, out, "rows[2]{id}:")
}

func TestRenderResultTOONScalarFallsBackToJSON(t *testing.T) {
	out, err := RenderResult(42, FormatTOON)
	require.NoError(t, err)
	require.Equal(t, "42", out)
}
