package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/agekit/agekit/pkg/lru"
)

// Key identifies one logical execution context — a scheduler loop, worker, or
// request-processing unit that must not share live pooled connections with
// another such unit. Keys are explicit handles passed into every lifecycle
// call; there is no ambient lookup.
type Key string

// NewKey mints a unique execution-context key.
func NewKey() Key { return Key(uuid.NewString()) }

// IsoLevel is a transaction isolation level passed through to the driver.
type IsoLevel = pgx.TxIsoLevel

// Accepted isolation levels.
const (
	ReadUncommitted = pgx.ReadUncommitted
	ReadCommitted   = pgx.ReadCommitted
	RepeatableRead  = pgx.RepeatableRead
	Serializable    = pgx.Serializable
)

// TxOptions configures a scoped transaction. The zero value uses the driver
// defaults.
type TxOptions struct {
	IsoLevel IsoLevel
}

// Engine is one live connection pool bound to a single execution context,
// together with the settings it was built from. The pool doubles as the
// session factory: every acquired session hands back plain decoded values
// that stay valid after its transaction ends.
type Engine struct {
	pool     *pgxpool.Pool
	settings *Settings
	key      Key
}

// Pool returns the underlying pgx pool.
func (e *Engine) Pool() *pgxpool.Pool { return e.pool }

// Settings returns the settings the engine was built from.
func (e *Engine) Settings() *Settings { return e.settings }

// Key returns the execution-context key the engine is cached under.
func (e *Engine) Key() Key { return e.key }

// Stat snapshots the pool statistics.
func (e *Engine) Stat() *pgxpool.Stat { return e.pool.Stat() }

// Manager lazily builds and caches one Engine per execution-context key.
//
// The backing LRU cache has no locking of its own, so the manager serializes
// every cache access behind its mutex; lookup-and-store is a single atomic
// step, guaranteeing at most one engine is ever built per key. If inserting a
// new engine would push the cache past capacity, the eviction victim's pool is
// closed before it is dropped so no connections leak.
type Manager struct {
	mu       sync.Mutex
	settings *Settings
	engines  *lru.Cache[Key, *Engine]
	logger   *zap.Logger
}

// NewManager creates a Manager for one database target. maxEngines caps the
// number of live per-context pools (non-positive means lru.DefaultMaxSize).
// A nil logger disables logging.
func NewManager(settings *Settings, maxEngines int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		settings: settings,
		engines:  lru.New[Key, *Engine](maxEngines),
		logger:   logger,
	}
}

// Settings returns the target settings shared by all engines.
func (m *Manager) Settings() *Settings { return m.settings }

// AcquireEngine returns the engine cached for key, building one on first use.
// Repeated calls with the same key return the same engine instance until the
// key is disposed.
func (m *Manager) AcquireEngine(ctx context.Context, key Key) (*Engine, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if engine, ok := m.engines.Get(key); ok {
		return engine, nil
	}

	cfg, err := m.settings.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine for %q: %w", m.settings.Name, err)
	}

	// Close the eviction victim's pool before it falls out of the cache.
	if m.engines.Len() >= m.engines.MaxSize() {
		if victimKey, victim, ok := m.engines.Oldest(); ok {
			m.logger.Warn("engine cache full, disposing least-recently-used engine",
				zap.String("connection", m.settings.Name),
				zap.String("context", string(victimKey)))
			victim.pool.Close()
		}
	}

	engine := &Engine{pool: pool, settings: m.settings, key: key}
	m.engines.Put(key, engine)

	m.logger.Debug("engine created",
		zap.String("connection", m.settings.Name),
		zap.String("context", string(key)),
		zap.String("dsn", m.settings.DSN.Redacted()))

	return engine, nil
}

// Sessions returns the session factory for key — the pool sessions are
// acquired from — building the engine first if absent.
func (m *Manager) Sessions(ctx context.Context, key Key) (*pgxpool.Pool, error) {
	engine, err := m.AcquireEngine(ctx, key)
	if err != nil {
		return nil, err
	}
	return engine.pool, nil
}

// WithTx runs fn inside a transaction on a session scoped to key.
//
// On normal return from fn the transaction commits; on any error — including
// context cancellation inside fn — it rolls back. The session is released
// back to the pool in every case. Rollback runs on an uncancelable context so
// a cancelled caller still cleans up.
func (m *Manager) WithTx(ctx context.Context, key Key, opts TxOptions, fn func(ctx context.Context, tx pgx.Tx) error) error {
	sessions, err := m.Sessions(ctx, key)
	if err != nil {
		return err
	}

	conn, err := sessions.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire session for %q: %w", m.settings.Name, err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: opts.IsoLevel})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	return m.runTx(ctx, tx, fn)
}

// runTx drives one open transaction to completion: commit when fn returns
// nil, rollback otherwise. Rollback runs on an uncancelable context so a
// cancelled caller still cleans up; a rollback against an already-closed
// transaction is not an error.
func (m *Manager) runTx(ctx context.Context, tx pgx.Tx, fn func(ctx context.Context, tx pgx.Tx) error) error {
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				m.logger.Error("transaction rollback failed",
					zap.String("connection", m.settings.Name), zap.Error(rbErr))
			}
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Dispose closes the engine cached for key, returning every pooled connection,
// and clears the cache entry so the next use builds a fresh engine. Disposing
// a key with nothing cached is a no-op.
func (m *Manager) Dispose(ctx context.Context, key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engines.Clear(func(k Key, engine *Engine) bool {
		if k != key {
			return false
		}
		engine.pool.Close()
		m.logger.Debug("engine disposed",
			zap.String("connection", m.settings.Name),
			zap.String("context", string(k)))
		return true
	})
}

// DisposeAll closes and clears every cached engine.
func (m *Manager) DisposeAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engines.Clear(func(k Key, engine *Engine) bool {
		engine.pool.Close()
		return true
	})
}

// forEachEngine snapshots the cache under the mutex for read-only callers
// such as the metrics collector.
func (m *Manager) forEachEngine(fn func(key Key, engine *Engine)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines.ForEach(fn)
}
