// Package watermark persists per-table sync cutoff state between runs.
package watermark

import "time"

// Record is one table's durable watermark state. Zero times mean the
// table has never been synced.
type Record struct {
	TableName         string
	LastSyncedAt      time.Time
	LastRowAt         time.Time
	LastBatchSyncedAt time.Time
}

// Store is the durable watermark backend shared by all tables' actions.
// Get of an unknown table returns a zero Record, not an error.
type Store interface {
	EnsureStorageExists() error
	Get(tableName string) (Record, error)
	Set(rec Record) error
}
