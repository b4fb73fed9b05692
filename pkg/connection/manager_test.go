package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// testSettings points at a port nothing listens on; engine construction is
// lazy so no test here touches the network on the happy path.
func testSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := FromNameAndDSN("primary", "postgres://u:p@127.0.0.1:1/graphdb")
	require.NoError(t, err)
	s.PoolMinConnections = 0 // keep the pool from dialing in the background
	return s
}

func TestManager_AcquireEngineIdempotent(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	defer m.DisposeAll(context.Background())

	key := NewKey()
	e1, err := m.AcquireEngine(context.Background(), key)
	require.NoError(t, err)
	e2, err := m.AcquireEngine(context.Background(), key)
	require.NoError(t, err)

	assert.Same(t, e1, e2, "same context must reuse the same engine")
	assert.Equal(t, key, e1.Key())
}

func TestManager_EnginesAreContextScoped(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	defer m.DisposeAll(context.Background())

	e1, err := m.AcquireEngine(context.Background(), NewKey())
	require.NoError(t, err)
	e2, err := m.AcquireEngine(context.Background(), NewKey())
	require.NoError(t, err)

	assert.NotSame(t, e1, e2, "distinct contexts must not share an engine")
	assert.NotSame(t, e1.Pool(), e2.Pool())
}

func TestManager_EmptyKey(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)

	_, err := m.AcquireEngine(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestManager_DisposeIdempotent(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	key := NewKey()

	_, err := m.AcquireEngine(context.Background(), key)
	require.NoError(t, err)

	m.Dispose(context.Background(), key)
	// Second dispose is a no-op, and disposing an unknown key is too.
	m.Dispose(context.Background(), key)
	m.Dispose(context.Background(), NewKey())
}

func TestManager_DisposeRebuildsOnNextUse(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	defer m.DisposeAll(context.Background())

	key := NewKey()
	e1, err := m.AcquireEngine(context.Background(), key)
	require.NoError(t, err)

	m.Dispose(context.Background(), key)

	e2, err := m.AcquireEngine(context.Background(), key)
	require.NoError(t, err)
	assert.NotSame(t, e1, e2, "dispose must drop the cached engine")
}

func TestManager_EvictionDisposesVictim(t *testing.T) {
	m := NewManager(testSettings(t), 1, nil)
	defer m.DisposeAll(context.Background())

	key1, key2 := NewKey(), NewKey()
	e1, err := m.AcquireEngine(context.Background(), key1)
	require.NoError(t, err)

	_, err = m.AcquireEngine(context.Background(), key2)
	require.NoError(t, err)

	// key1 was evicted; next use builds a fresh engine.
	e1again, err := m.AcquireEngine(context.Background(), key1)
	require.NoError(t, err)
	assert.NotSame(t, e1, e1again)
}

func TestManager_Sessions(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	defer m.DisposeAll(context.Background())

	key := NewKey()
	p1, err := m.Sessions(context.Background(), key)
	require.NoError(t, err)
	p2, err := m.Sessions(context.Background(), key)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestManager_WithTxCancelledContext(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	defer m.DisposeAll(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.WithTx(ctx, NewKey(), TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		t.Fatal("transaction body must not run")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// recordingTx fakes the commit/rollback surface of pgx.Tx. The embedded
// interface is nil, so any other method panics the test.
type recordingTx struct {
	pgx.Tx
	commits     int
	rollbacks   int
	commitErr   error
	rollbackErr error
	rollbackCtx context.Context
}

func (t *recordingTx) Commit(ctx context.Context) error {
	t.commits++
	return t.commitErr
}

func (t *recordingTx) Rollback(ctx context.Context) error {
	t.rollbacks++
	t.rollbackCtx = ctx
	return t.rollbackErr
}

func TestManager_RunTxCommitsOnSuccess(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	tx := &recordingTx{}

	err := m.runTx(context.Background(), tx, func(ctx context.Context, got pgx.Tx) error {
		assert.Same(t, tx, got.(*recordingTx))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks, "a committed transaction must not roll back")
}

func TestManager_RunTxRollsBackOnError(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	tx := &recordingTx{}
	boom := errors.New("boom")

	err := m.runTx(context.Background(), tx, func(ctx context.Context, _ pgx.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestManager_RunTxRollsBackOnCancellationInBody(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	tx := &recordingTx{}

	ctx, cancel := context.WithCancel(context.Background())
	err := m.runTx(ctx, tx, func(ctx context.Context, _ pgx.Tx) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tx.rollbacks)
	require.NotNil(t, tx.rollbackCtx)
	assert.NoError(t, tx.rollbackCtx.Err(), "rollback must run on an uncancelable context")
}

func TestManager_RunTxRollsBackOnCommitFailure(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	commitErr := errors.New("connection reset")
	tx := &recordingTx{commitErr: commitErr}

	err := m.runTx(context.Background(), tx, func(ctx context.Context, _ pgx.Tx) error {
		return nil
	})
	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, 1, tx.rollbacks, "a failed commit must still roll back")
}

func TestManager_RunTxRollbackErrors(t *testing.T) {
	tests := []struct {
		name        string
		rollbackErr error
		wantLogs    int
	}{
		{name: "closed transaction is quiet", rollbackErr: pgx.ErrTxClosed, wantLogs: 0},
		{name: "real failure is logged", rollbackErr: errors.New("broken pipe"), wantLogs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.ErrorLevel)
			m := NewManager(testSettings(t), 0, zap.New(core))
			tx := &recordingTx{rollbackErr: tt.rollbackErr}

			err := m.runTx(context.Background(), tx, func(ctx context.Context, _ pgx.Tx) error {
				return errors.New("boom")
			})
			require.Error(t, err)
			assert.Equal(t, 1, tx.rollbacks)
			assert.Equal(t, tt.wantLogs, logs.Len())
		})
	}
}

func TestManager_ConcurrentAcquireSingleEngine(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	defer m.DisposeAll(context.Background())

	key := NewKey()
	const goroutines = 16
	results := make(chan *Engine, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			e, err := m.AcquireEngine(context.Background(), key)
			assert.NoError(t, err)
			results <- e
		}()
	}

	first := <-results
	for i := 1; i < goroutines; i++ {
		assert.Same(t, first, <-results, "racing callers must retain one canonical engine")
	}
}
