// Package sql adapts standard library database/sql connections to the
// rudder data source contract.
//
// The adapter borrows the *sql.DB; ownership (pooling, lifecycle, Close)
// stays with the surrounding proxy. Diagnostic result sets are materialized
// fully, which is safe because discovery statements return at most a
// handful of rows.
package sql
