package sql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/arloliu/rudder/types"
)

// ErrNilDB indicates a nil *sql.DB was provided.
var ErrNilDB = errors.New("rudder/adapter/sql: db cannot be nil")

// Source adapts a *sql.DB to the types.DataSource contract.
type Source struct {
	name string
	db   *sql.DB
}

// Compile-time assertion that Source implements types.DataSource.
var _ types.DataSource = (*Source)(nil)

// NewSource creates a data source handle over a *sql.DB.
//
// Parameters:
//   - name: The unique data source name within its pool
//   - db: The underlying connection pool, owned by the caller
//
// Returns:
//   - *Source: An adapter implementing types.DataSource
//   - error: ErrNilDB if db is nil
func NewSource(name string, db *sql.DB) (*Source, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	return &Source{name: name, db: db}, nil
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
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []types.Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(types.Row, len(columns))
		for i, column := range columns {
			// Drivers may reuse []byte buffers between Scan calls.
			if b, ok := values[i].([]byte); ok {
				copied := make([]byte, len(b))
				copy(copied, b)
				row[column] = copied
				continue
			}
			row[column] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
