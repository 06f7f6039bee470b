package audit

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dynmcp/dynmcp/internal/registry"
)

func newTestAudit(t *testing.T) *Audit {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := New(db, registry.NameMapper{})
	require.NoError(t, a.EnsureSchema(context.Background()))
	return a
}

func TestRecordAndLastFailure(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, a.Record(ctx, now, "tool_a", "default", map[string]any{"x": 1}, StatusSuccess, "ok", ""))
	require.NoError(t, a.Record(ctx, now.Add(time.Second), "tool_a", "default", map[string]any{"x": 2}, StatusFailure, "", "boom"))

	entry, err := a.LastFailure(ctx, "tool_a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "boom", entry.ErrorTraceback)
	require.Equal(t, StatusFailure, entry.Status)
}

func TestLastFailureFiltersByToolName(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, a.Record(ctx, now, "tool_a", "default", nil, StatusFailure, "", "err-a"))
	require.NoError(t, a.Record(ctx, now, "tool_b", "default", nil, StatusFailure, "", "err-b"))

	entry, err := a.LastFailure(ctx, "tool_a")
	require.NoError(t, err)
	require.Equal(t, "err-a", entry.ErrorTraceback)
}

func TestLastFailureNoFilterReturnsMostRecent(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, a.Record(ctx, now, "tool_a", "default", nil, StatusFailure, "", "err-a"))
	require.NoError(t, a.Record(ctx, now.Add(time.Second), "tool_b", "default", nil, StatusFailure, "", "err-b"))

	entry, err := a.LastFailure(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "err-b", entry.ErrorTraceback)
}

func TestLastFailureNoneFoundReturnsNilWithoutError(t *testing.T) {
	a := newTestAudit(t)
	entry, err := a.LastFailure(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestRecordTruncatesOversizedResultSummary(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()
	huge := strings.Repeat("x", resultSummaryLimit+500)

	require.NoError(t, a.Record(ctx, time.Now(), "tool_a", "default", nil, StatusSuccess, huge, ""))

	entry, err := a.LastFailure(ctx, "")
	require.NoError(t, err)
	require.Nil(t, entry) // it was a success, not a failure

	var stored string
	require.NoError(t, a.db.QueryRow("SELECT result_summary FROM execution_log").Scan(&stored))
	require.Len(t, stored, resultSummaryLimit)
}

func TestAppendNotebookCreatesThenAppends(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, a.AppendNotebook(ctx, now, SelfCorrectionDomain, "tool_a_error", "first failure", "dispatcher"))
	value, ok, err := a.GetNotebook(ctx, SelfCorrectionDomain, "tool_a_error")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, value, "first failure")

	require.NoError(t, a.AppendNotebook(ctx, now.Add(time.Minute), SelfCorrectionDomain, "tool_a_error", "second failure", "dispatcher"))
	value, ok, err = a.GetNotebook(ctx, SelfCorrectionDomain, "tool_a_error")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, value, "first failure")
	require.Contains(t, value, "second failure")
	require.Equal(t, 2, strings.Count(value, "\n")+1)
}

func TestGetNotebookMissingReturnsNotOK(t *testing.T) {
	a := newTestAudit(t)
	_, ok, err := a.GetNotebook(context.Background(), SelfCorrectionDomain, "missing_key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSelfCorrectionKey(t *testing.T) {
	require.Equal(t, "list_tables_error", SelfCorrectionKey("list_tables"))
}
