// Package source reads rows and schema out of the system being
// replicated. Implementations exist for SQL Server and MySQL.
package source

import (
	"database/sql"
	"time"
)

// Column is one inferred source column, in table order.
type Column struct {
	Name string
	Type string
}

// Source is the read side of a table sync.
type Source interface {
	// EnsureConnection verifies the connection is live and reconnects
	// if a long-idle session was dropped.
	EnsureConnection() error

	TableExists(table string) (bool, error)

	// InferSchema returns the table's columns in ordinal position order.
	InferSchema(table string) ([]Column, error)

	// MaxTimestamp returns the maximum value of column across the whole
	// table, or a zero time for an empty table.
	MaxTimestamp(table, column string) (time.Time, error)

	// ExtractToFile streams every row whose sinceColumn value is
	// strictly greater than since into the NDJSON file at path,
	// restricted to columns, skipping offset rows. Returns the number
	// of rows staged.
	ExtractToFile(table string, columns []string, path string, sinceColumn string, since time.Time, offset int) (int, error)

	// ExtractAllToFile stages the entire table.
	ExtractAllToFile(table string, columns []string, path string) (int, error)
}

// scanRowMap reads the current row of rows into a column-keyed map,
// stringifying raw []byte values the driver hands back.
func scanRowMap(rows *sql.Rows, cols []string) (map[string]interface{}, error) {
	values := make([]interface{}, len(cols))
	pointers := make([]interface{}, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}

	m := make(map[string]interface{}, len(cols))
	for i, name := range cols {
		val := values[i]
		if b, ok := val.([]byte); ok {
			m[name] = string(b)
		} else {
			m[name] = val
		}
	}
	return m, nil
}
