// Package pg adapts pgx connection pools to the rudder data source
// contract, giving the postgres discovery provider native protocol access.
//
// The adapter borrows the pool; ownership (sizing, lifecycle, Close) stays
// with the surrounding proxy.
package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arloliu/rudder/types"
)

// ErrNilPool indicates a nil *pgxpool.Pool was provided.
var ErrNilPool = errors.New("rudder/adapter/pg: pool cannot be nil")

// Source adapts a *pgxpool.Pool to the types.DataSource contract.
type Source struct {
	name string
	pool *pgxpool.Pool
}

// Compile-time assertion that Source implements types.DataSource.
var _ types.DataSource = (*Source)(nil)

// NewSource creates a data source handle over a pgx pool.
//
// Parameters:
//   - name: The unique data source name within its pool
//   - pool: The underlying pgx connection pool, owned by the caller
//
// Returns:
//   - *Source: An adapter implementing types.DataSource
//   - error: ErrNilPool if pool is nil
func NewSource(name string, pool *pgxpool.Pool) (*Source, error) {
	if pool == nil {
		return nil, ErrNilPool
	}

	return &Source{name: name, pool: pool}, nil
}

// Name returns the data source name.
func (s *Source) Name() string {
	return s.name
}

// Query executes one diagnostic statement and materializes the result set
// as rows keyed by column name.
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - stmt: The diagnostic statement
//
// Returns:
//   - []types.Row: All rows of the result set
//   - error: Connectivity or protocol failure
func (s *Source) Query(ctx context.Context, stmt string) ([]types.Row, error) {
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var result []types.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(types.Row, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
