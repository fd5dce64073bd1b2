// Package target applies staged rows to the system being replicated
// into. The MongoDB implementation is the production one.
package target

// Target is the write side of a table sync. Loads consume the staging
// file directly so a decoupled loader process could do the same work.
type Target interface {
	TableExists(name string) (bool, error)

	// CreateTable creates the target table when it is missing. Calling
	// it for an existing table is a no-op, never an error.
	CreateTable(name string, schema map[string]string) error

	// UpsertFromFile applies every staged row keyed by key. Replaying
	// the same file is harmless.
	UpsertFromFile(name, key, path string, schema map[string]string) (int, error)

	// ReplaceFromFile swaps the table's full contents for the staged
	// rows without exposing a partially loaded state.
	ReplaceFromFile(name, path string, schema map[string]string) (int, error)
}
