package age

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agekit/agekit/pkg/connection"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	s, err := connection.FromNameAndDSN("primary", "postgres://u:p@127.0.0.1:1/graphdb")
	require.NoError(t, err)
	s.PoolMinConnections = 0
	return NewClient(connection.NewManager(s, 0, nil), nil)
}

func TestCypherSQL(t *testing.T) {
	sql, err := CypherSQL("routes", "MATCH (n:City) RETURN n", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM cypher('routes', $q$MATCH (n:City) RETURN n$q$) AS (result agtype)", sql)
}

func TestCypherSQL_MultipleColumns(t *testing.T) {
	sql, err := CypherSQL("routes", "MATCH (a)-[r]->(b) RETURN a, r, b", []string{"a", "r", "b"})
	require.NoError(t, err)
	assert.Contains(t, sql, "AS (a agtype, r agtype, b agtype)")
}

func TestCypherSQL_RejectsBadIdents(t *testing.T) {
	tests := []struct {
		name    string
		graph   string
		columns []string
	}{
		{"empty graph", "", nil},
		{"quoted graph", "g'); DROP TABLE users; --", nil},
		{"spaced graph", "my graph", nil},
		{"bad column", "g", []string{"a b"}},
		{"quoted column", "g", []string{"a\"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CypherSQL(tt.graph, "RETURN 1", tt.columns)
			assert.ErrorIs(t, err, ErrInvalidIdent)
		})
	}
}

func TestCypherSQL_RejectsQuoteTagEscape(t *testing.T) {
	_, err := CypherSQL("g", "RETURN '$q$ smuggled'", nil)
	assert.Error(t, err)
}

func TestClient_RejectsBadGraphNamesBeforeIO(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := connection.NewKey()

	err := c.CreateGraph(ctx, key, "not a name")
	assert.ErrorIs(t, err, ErrInvalidIdent)

	err = c.DropGraph(ctx, key, "also;bad", true)
	assert.ErrorIs(t, err, ErrInvalidIdent)

	_, err = c.QueryRows(ctx, key, connection.TxOptions{}, "bad name", "RETURN 1", nil)
	assert.ErrorIs(t, err, ErrInvalidIdent)
}

func TestClient_QueryCancelledContext(t *testing.T) {
	c := testClient(t)
	defer c.Manager().DisposeAll(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.QueryRows(ctx, connection.NewKey(), connection.TxOptions{}, "routes", "RETURN 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
