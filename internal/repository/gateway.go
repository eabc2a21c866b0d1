package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sysmon-api/internal/config"
	"sysmon-api/internal/domain"
	"sysmon-api/internal/util"
)

// Gateway owns the bounded connection pool. Every database call goes
// through WithConn or WithTx so leased connections are always returned.
type Gateway struct {
	db      *sql.DB
	dialect dialect
	cfg     config.Database
	logger  *util.Logger

	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(attempt int, err error)
}

type Option func(*Gateway)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) { g.sleep = fn }
}

// WithRetryHook is called after every failed connection attempt.
func WithRetryHook(fn func(attempt int, err error)) Option {
	return func(g *Gateway) { g.onRetry = fn }
}

// New creates the pool without contacting the database.
func New(cfg config.Database, logger *util.Logger, opts ...Option) (*Gateway, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(30 * time.Minute)

	g := &Gateway{
		db:      db,
		dialect: d,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Open creates the pool and blocks until the database answers, retrying
// with exponential backoff. Exhausting the budget returns a
// *domain.ConnectionError and closes the pool.
func Open(ctx context.Context, cfg config.Database, logger *util.Logger, opts ...Option) (*Gateway, error) {
	g, err := New(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	if err := g.Connect(ctx); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Connect pings the database up to ConnectRetries times.
func (g *Gateway) Connect(ctx context.Context) error {
	attempts := max(g.cfg.ConnectRetries, 1)
	delay := g.cfg.RetryBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = g.ping(ctx)
		if lastErr == nil {
			g.logger.LogFields(util.LOG_LEVEL_INFO, "database connection established",
				zap.String("driver", g.dialect.name), zap.Int("attempt", attempt))
			return nil
		}

		g.logger.LogFields(util.LOG_LEVEL_ERROR, "database connection attempt failed",
			zap.Int("attempt", attempt), zap.Int("max_attempts", attempts), zap.Error(lastErr))
		if g.onRetry != nil {
			g.onRetry(attempt, lastErr)
		}

		if attempt == attempts {
			break
		}
		if err := g.sleep(ctx, delay); err != nil {
			return &domain.ConnectionError{Op: "connect", Attempts: attempt, Err: err}
		}
		delay *= 2
	}
	return &domain.ConnectionError{Op: "connect", Attempts: attempts, Err: lastErr}
}

func (g *Gateway) ping(ctx context.Context) error {
	return g.WithConn(ctx, func(conn *sql.Conn) error {
		var one int
		if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return &domain.ConnectionError{Op: "ping", Err: err}
		}
		return nil
	})
}

// Ping runs a trivial round trip on a freshly acquired connection.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.ping(ctx)
}

// Acquire leases one connection from the pool, waiting if it is exhausted.
func (g *Gateway) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, &domain.ConnectionError{Op: "acquire", Err: err}
	}
	return conn, nil
}

// Release returns conn to the pool.
func (g *Gateway) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		g.logger.LogEvent(util.LOG_LEVEL_WARN, "Releasing connection. Err -", err)
	}
}

// WithConn runs fn on a leased connection and releases it on every path.
func (g *Gateway) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer g.Release(conn)
	return fn(conn)
}

// WithTx runs fn inside one transaction: committed when fn returns nil,
// rolled back on error or panic. The connection is released either way.
func (g *Gateway) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return g.WithConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return &domain.PersistenceError{Op: "begin", Index: -1, Err: err}
		}

		committed := false
		defer func() {
			if !committed {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					g.logger.LogEvent(util.LOG_LEVEL_ERROR, "Rollback failed. Err -", rbErr)
				}
			}
		}()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return &domain.PersistenceError{Op: "commit", Index: -1, Err: err}
		}
		committed = true
		return nil
	})
}

// DB exposes the pool for stats collection.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

func (g *Gateway) Driver() string {
	return g.dialect.name
}

func (g *Gateway) Close() error {
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
