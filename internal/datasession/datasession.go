// Package datasession manages the optional "data-session" — the pooled
// connection to the user's own data store that SQL tools query. Its
// absence switches the server into offline mode (spec.md §5): listings
// keep working, but any select-kind dispatch fails with
// ErrBackendUnavailable.
//
// This generalizes the retry/backoff/connection-pool fields of the
// teacher's internal/emergent.ClientFactory (maxRetries,
// longOutageIntervalMins, longOutageThreshold) from an HTTP SDK client
// factory to a database/sql connection pool.
package datasession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dynmcp/dynmcp/internal/dbdriver"
)

// ErrBackendUnavailable is returned by Pool.Ping (and by callers of
// Pool.DB, such as the SQL executor's Run) when no data session is
// connected.
var ErrBackendUnavailable = errors.New("datasession: data backend unavailable")

// Pool holds the optional data-session connection and its reconnect policy.
type Pool struct {
	mu                     sync.RWMutex
	db                     *sql.DB
	dialect                dbdriver.Dialect
	url                    string
	maxRetries             int
	longOutageIntervalMins int
	longOutageThreshold    int
	consecutiveFailures    int
	reconnectAttempts      int
}

// NewPool creates a Pool. url may be empty, in which case the server starts
// in offline mode until Reconnect is called with a non-empty URL.
func NewPool(url string, maxRetries, longOutageIntervalMins, longOutageThreshold int) *Pool {
	p := &Pool{
		url:                    url,
		maxRetries:             maxRetries,
		longOutageIntervalMins: longOutageIntervalMins,
		longOutageThreshold:    longOutageThreshold,
	}
	return p
}

// Connect opens the configured data session, if a URL is set. A failure
// here is non-fatal for the server (spec.md §5 Lifecycle): it leaves the
// pool in offline mode.
func (p *Pool) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(ctx)
}

func (p *Pool) connectLocked(ctx context.Context) error {
	if p.url == "" {
		return nil
	}
	db, dialect, err := dbdriver.Open(p.url)
	if err != nil {
		return fmt.Errorf("datasession: opening: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("datasession: pinging: %w", err)
	}
	p.db = db
	p.dialect = dialect
	p.consecutiveFailures = 0
	p.reconnectAttempts = 0
	return nil
}

// Reconnect closes any existing session and attempts to open url, making
// the new state observable to all subsequent calls (spec.md §5
// "Reconnection via the reconnect_db meta-tool is observable to all
// subsequent calls").
func (p *Pool) Reconnect(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		p.db.Close()
		p.db = nil
	}
	p.url = url
	return p.connectLocked(ctx)
}

// Ping checks the current session's health, tracking consecutive failures
// against the long-outage threshold. Called directly by the
// test_db_connection meta-tool and periodically by RunHealthLoop.
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return ErrBackendUnavailable
	}
	if err := p.db.PingContext(ctx); err != nil {
		p.consecutiveFailures++
		return fmt.Errorf("datasession: ping failed: %w", err)
	}
	p.consecutiveFailures = 0
	return nil
}

// RetryInterval returns how long to wait before the next reconnect attempt,
// switching to the long-outage interval once consecutiveFailures crosses
// longOutageThreshold.
func (p *Pool) RetryInterval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.consecutiveFailures >= p.longOutageThreshold {
		return time.Duration(p.longOutageIntervalMins) * time.Minute
	}
	return 10 * time.Second
}

// DB returns the current connection and dialect, or ok=false in offline
// mode.
func (p *Pool) DB() (db *sql.DB, dialect dbdriver.Dialect, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db, p.dialect, p.db != nil
}

// Online reports whether a data session is currently connected.
func (p *Pool) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db != nil
}

// RunHealthLoop periodically checks the data session's health until ctx is
// done: pinging it when connected, attempting to reconnect when offline.
// The wait between checks is RetryInterval(), which itself lengthens once
// consecutiveFailures crosses longOutageThreshold — generalizing the
// teacher's ticker-based Scheduler into a single self-pacing loop rather
// than a fixed-interval job.
func (p *Pool) RunHealthLoop(ctx context.Context, logger *slog.Logger) {
	timer := time.NewTimer(p.RetryInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.checkHealth(ctx, logger)
			timer.Reset(p.RetryInterval())
		}
	}
}

// checkHealth runs one iteration of the health loop: reconnect when offline
// (up to maxRetries consecutive attempts, after which it waits for a
// manual reconnect_db call), or ping when connected.
func (p *Pool) checkHealth(ctx context.Context, logger *slog.Logger) {
	p.mu.RLock()
	offline := p.db == nil
	url := p.url
	attempts := p.reconnectAttempts
	maxRetries := p.maxRetries
	p.mu.RUnlock()

	if offline {
		if url == "" {
			return
		}
		if maxRetries > 0 && attempts >= maxRetries {
			logger.Debug("data session reconnect attempts exhausted, waiting for manual reconnect_db", "attempts", attempts)
			return
		}
		if err := p.Connect(ctx); err != nil {
			p.mu.Lock()
			p.reconnectAttempts++
			p.mu.Unlock()
			logger.Warn("data session still unavailable", "error", err, "attempt", attempts+1)
			return
		}
		logger.Info("data session reconnected")
		return
	}

	if err := p.Ping(ctx); err != nil {
		logger.Warn("data session health check failed", "error", err)
	}
}

// Close releases the underlying connection, if any.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
