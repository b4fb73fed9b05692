// Package age executes openCypher queries against a PostgreSQL database with
// the Apache AGE extension and decodes the agtype results it returns.
//
// The client does not implement a query language of its own: cypher text is
// passed through to AGE's cypher() function, and the tagged-text results are
// decoded by pkg/agtype into graph records.
package age

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/agekit/agekit/pkg/agtype"
	"github.com/agekit/agekit/pkg/connection"
)

// identPattern matches names safe to splice into cypher() calls; graph and
// column names are interpolated as SQL literals/identifiers, not bind
// parameters, so anything else is rejected up front.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidIdent is returned for graph or column names that are not plain
// identifiers.
var ErrInvalidIdent = errors.New("graph and column names must be plain identifiers")

// Client runs graph operations for one database target. All calls take an
// explicit execution-context key; engines are resolved through the manager.
type Client struct {
	manager *connection.Manager
	logger  *zap.Logger
}

// NewClient creates a Client over an existing manager. A nil logger disables
// logging.
func NewClient(manager *connection.Manager, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{manager: manager, logger: logger}
}

// Manager returns the lifecycle manager the client resolves engines through.
func (c *Client) Manager() *connection.Manager { return c.manager }

// prepare loads the AGE extension and puts ag_catalog on the search path for
// the session the transaction runs on. AGE requires this per session.
func (c *Client) prepare(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "LOAD 'age'"); err != nil {
		return fmt.Errorf("failed to load age extension: %w", err)
	}
	if _, err := tx.Exec(ctx, `SET search_path = ag_catalog, "$user", public`); err != nil {
		return fmt.Errorf("failed to set search path: %w", err)
	}
	return nil
}

// CreateGraph creates a named graph.
func (c *Client) CreateGraph(ctx context.Context, key connection.Key, graph string) error {
	if !identPattern.MatchString(graph) {
		return fmt.Errorf("%w: %q", ErrInvalidIdent, graph)
	}
	return c.manager.WithTx(ctx, key, connection.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		if err := c.prepare(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "SELECT create_graph($1)", graph); err != nil {
			return fmt.Errorf("failed to create graph %q: %w", graph, err)
		}
		c.logger.Info("graph created", zap.String("graph", graph))
		return nil
	})
}

// DropGraph removes a named graph. With cascade set, its contents go too.
func (c *Client) DropGraph(ctx context.Context, key connection.Key, graph string, cascade bool) error {
	if !identPattern.MatchString(graph) {
		return fmt.Errorf("%w: %q", ErrInvalidIdent, graph)
	}
	return c.manager.WithTx(ctx, key, connection.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		if err := c.prepare(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "SELECT drop_graph($1, $2)", graph, cascade); err != nil {
			return fmt.Errorf("failed to drop graph %q: %w", graph, err)
		}
		c.logger.Info("graph dropped", zap.String("graph", graph), zap.Bool("cascade", cascade))
		return nil
	})
}

// ListGraphs returns the names of every graph in the database.
func (c *Client) ListGraphs(ctx context.Context, key connection.Key) ([]string, error) {
	var names []string
	err := c.manager.WithTx(ctx, key, connection.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, "SELECT name FROM ag_catalog.ag_graph ORDER BY name")
		if err != nil {
			return fmt.Errorf("failed to list graphs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("failed to scan graph name: %w", err)
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// CypherSQL wraps a cypher query in AGE's cypher() table function, returning
// one agtype column per requested name (default: a single "result" column).
func CypherSQL(graph, cypherQuery string, columns []string) (string, error) {
	if !identPattern.MatchString(graph) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdent, graph)
	}
	if len(columns) == 0 {
		columns = []string{"result"}
	}
	cols := make([]string, len(columns))
	for i, col := range columns {
		if !identPattern.MatchString(col) {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdent, col)
		}
		cols[i] = col + " agtype"
	}
	// The cypher body is passed as a dollar-quoted literal; reject text that
	// could break out of the quoting.
	if strings.Contains(cypherQuery, "$q$") {
		return "", fmt.Errorf("cypher query must not contain the $q$ quote tag")
	}
	return fmt.Sprintf("SELECT * FROM cypher('%s', $q$%s$q$) AS (%s)",
		graph, cypherQuery, strings.Join(cols, ", ")), nil
}

// QueryRows runs a cypher query and returns the raw result rows, tagged
// agtype text included.
func (c *Client) QueryRows(ctx context.Context, key connection.Key, opts connection.TxOptions, graph, cypherQuery string, columns []string) ([]agtype.Row, error) {
	sql, err := CypherSQL(graph, cypherQuery, columns)
	if err != nil {
		return nil, err
	}

	if c.manager.Settings().Echo {
		c.logger.Debug("executing cypher", zap.String("graph", graph), zap.String("sql", sql))
	}

	var result []agtype.Row
	err = c.manager.WithTx(ctx, key, opts, func(ctx context.Context, tx pgx.Tx) error {
		if err := c.prepare(ctx, tx); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, sql)
		if err != nil {
			return fmt.Errorf("failed to execute cypher on %q: %w", graph, err)
		}
		defer rows.Close()

		result, err = collectRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryMaps runs a cypher query and batch-decodes the tagged results into
// plain maps (see agtype.DecodeRows for the batch semantics).
func (c *Client) QueryMaps(ctx context.Context, key connection.Key, opts connection.TxOptions, graph, cypherQuery string, columns []string) ([]map[string]any, error) {
	rows, err := c.QueryRows(ctx, key, opts, graph, cypherQuery, columns)
	if err != nil {
		return nil, err
	}
	return agtype.DecodeRows(rows)
}

// QueryRecords runs a cypher query and decodes the results into graph
// records.
func (c *Client) QueryRecords(ctx context.Context, key connection.Key, opts connection.TxOptions, graph, cypherQuery string, columns []string) ([]*agtype.Record, error) {
	rows, err := c.QueryRows(ctx, key, opts, graph, cypherQuery, columns)
	if err != nil {
		return nil, err
	}
	return agtype.RecordsFromRows(rows)
}

// collectRows drains a pgx result set into ordered agtype rows.
func collectRows(rows pgx.Rows) ([]agtype.Row, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var out []agtype.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		out = append(out, agtype.Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating rows: %w", err)
	}
	return out, nil
}
