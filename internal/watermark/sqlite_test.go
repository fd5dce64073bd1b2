package watermark

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "watermarks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureStorageExists(); err != nil {
		t.Fatalf("ensure storage: %v", err)
	}
	return store
}

func TestEnsureStorageExistsIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := store.EnsureStorageExists(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}

func TestGetUnknownTableReturnsZeroRecord(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.Get("never_synced")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.LastSyncedAt.IsZero() || !rec.LastRowAt.IsZero() || !rec.LastBatchSyncedAt.IsZero() {
		t.Errorf("expected zero record, got %+v", rec)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := Record{
		TableName:    "orders",
		LastSyncedAt: time.Date(2024, 3, 1, 9, 20, 0, 0, time.UTC),
		LastRowAt:    time.Date(2024, 3, 1, 9, 10, 0, 123456789, time.UTC),
	}
	if err := store.Set(want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get("orders")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastSyncedAt.Equal(want.LastSyncedAt) {
		t.Errorf("last_synced_at = %v, want %v", got.LastSyncedAt, want.LastSyncedAt)
	}
	if !got.LastRowAt.Equal(want.LastRowAt) {
		t.Errorf("last_row_at = %v, want %v", got.LastRowAt, want.LastRowAt)
	}
	if !got.LastBatchSyncedAt.IsZero() {
		t.Errorf("last_batch_synced_at = %v, want zero", got.LastBatchSyncedAt)
	}
}

func TestSetUpserts(t *testing.T) {
	store := newTestStore(t)
	first := Record{TableName: "orders", LastSyncedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	second := Record{TableName: "orders", LastSyncedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	if err := store.Set(first); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("orders")
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastSyncedAt.Equal(second.LastSyncedAt) {
		t.Errorf("upsert kept stale value %v", got.LastSyncedAt)
	}

	all, err := store.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("upsert produced %d rows, want 1", len(all))
	}
}

func TestAllOrdersByTableName(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"users", "orders", "payments"} {
		if err := store.Set(Record{TableName: name, LastRowAt: time.Now().UTC()}); err != nil {
			t.Fatal(err)
		}
	}
	all, err := store.All()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"orders", "payments", "users"}
	for i, rec := range all {
		if rec.TableName != want[i] {
			t.Errorf("position %d: got %s, want %s", i, rec.TableName, want[i])
		}
	}
}
