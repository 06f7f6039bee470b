package datasession

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/dbdriver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPoolWithEmptyURLStartsOffline(t *testing.T) {
	p := NewPool("", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))
	require.False(t, p.Online())

	_, _, ok := p.DB()
	require.False(t, ok)
}

func TestConnectAndOnline(t *testing.T) {
	p := NewPool("sqlite::memory:", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))
	require.True(t, p.Online())

	db, dialect, ok := p.DB()
	require.True(t, ok)
	require.NotNil(t, db)
	require.Equal(t, dbdriver.DialectSQLite, dialect)
}

func TestPingOfflineReturnsErrBackendUnavailable(t *testing.T) {
	p := NewPool("", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))
	err := p.Ping(context.Background())
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestPingOnlineSucceeds(t *testing.T) {
	p := NewPool("sqlite::memory:", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Ping(context.Background()))
}

func TestReconnectSwapsConnection(t *testing.T) {
	p := NewPool("", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))
	require.False(t, p.Online())

	require.NoError(t, p.Reconnect(context.Background(), "sqlite::memory:"))
	require.True(t, p.Online())
}

func TestRetryIntervalDefaultsToShortInterval(t *testing.T) {
	p := NewPool("sqlite::memory:", 3, 5, 2)
	require.NoError(t, p.Connect(context.Background()))
	require.Equal(t, 10*time.Second, p.RetryInterval())
}

func TestRetryIntervalSwitchesToLongOutageAtZeroThreshold(t *testing.T) {
	// A threshold of 0 means even the initial (zero) failure count has
	// already crossed it.
	p := NewPool("sqlite::memory:", 3, 5, 0)
	require.NoError(t, p.Connect(context.Background()))
	require.Equal(t, 5*time.Minute, p.RetryInterval())
}

func TestCheckHealthPingsWhenOnline(t *testing.T) {
	p := NewPool("sqlite::memory:", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))

	p.checkHealth(context.Background(), discardLogger())
	require.True(t, p.Online())
}

func TestCheckHealthReconnectsWhenOffline(t *testing.T) {
	p := NewPool("sqlite::memory:", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Close())
	require.False(t, p.Online())

	p.checkHealth(context.Background(), discardLogger())
	require.True(t, p.Online())
}

func TestCheckHealthSkipsReconnectWithEmptyURL(t *testing.T) {
	p := NewPool("", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))

	p.checkHealth(context.Background(), discardLogger())
	require.False(t, p.Online())
	require.Equal(t, 0, p.reconnectAttempts)
}

func TestCheckHealthStopsRetryingPastMaxRetries(t *testing.T) {
	p := NewPool("sqlite://"+t.TempDir()+"/does-not-exist/db.sqlite?mode=ro", 2, 5, 3)
	require.Error(t, p.Connect(context.Background()))

	p.checkHealth(context.Background(), discardLogger())
	p.checkHealth(context.Background(), discardLogger())
	require.Equal(t, 2, p.reconnectAttempts)

	p.checkHealth(context.Background(), discardLogger())
	require.Equal(t, 2, p.reconnectAttempts, "a third check should not attempt again once maxRetries is reached")
}

func TestRunHealthLoopStopsOnContextCancel(t *testing.T) {
	p := NewPool("sqlite::memory:", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.RunHealthLoop(ctx, discardLogger())
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunHealthLoop did not stop after context cancellation")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewPool("sqlite::memory:", 3, 5, 3)
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.False(t, p.Online())
}
