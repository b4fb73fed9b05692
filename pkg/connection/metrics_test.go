package connection

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	defer m.DisposeAll(context.Background())

	_, err := m.AcquireEngine(context.Background(), NewKey())
	require.NoError(t, err)
	_, err = m.AcquireEngine(context.Background(), NewKey())
	require.NoError(t, err)

	c := NewPoolStatsCollector(m)

	// Six series per engine.
	assert.Equal(t, 12, testutil.CollectAndCount(c))
}

func TestPoolStatsCollector_NoEngines(t *testing.T) {
	m := NewManager(testSettings(t), 0, nil)
	c := NewPoolStatsCollector(m)
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}
