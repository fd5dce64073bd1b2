package sync

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BartekS5/tablesync/internal/source"
	"github.com/BartekS5/tablesync/internal/staging"
	"github.com/BartekS5/tablesync/internal/watermark"
)

// fakeRow is one source row with its watermark column value.
type fakeRow struct {
	id        int
	updatedAt time.Time
}

type fakeSource struct {
	exists    bool
	schema    []source.Column
	max       time.Time
	rows      []fakeRow
	wmColumn  string
	pingErr   error
	schemaErr error

	lastSince    time.Time
	extractCalls int
	fullCalls    int
}

func newFakeSource(rows []fakeRow) *fakeSource {
	maxAt := time.Time{}
	for _, r := range rows {
		if r.updatedAt.After(maxAt) {
			maxAt = r.updatedAt
		}
	}
	return &fakeSource{
		exists: true,
		schema: []source.Column{
			{Name: "id", Type: "int"},
			{Name: "name", Type: "varchar"},
			{Name: "updated_at", Type: "datetime2"},
		},
		max:      maxAt,
		rows:     rows,
		wmColumn: "updated_at",
	}
}

func (f *fakeSource) EnsureConnection() error { return f.pingErr }

func (f *fakeSource) TableExists(table string) (bool, error) { return f.exists, nil }

func (f *fakeSource) InferSchema(table string) ([]source.Column, error) {
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	return f.schema, nil
}

func (f *fakeSource) MaxTimestamp(table, column string) (time.Time, error) {
	if column != f.wmColumn {
		return time.Time{}, fmt.Errorf("unexpected watermark column %s", column)
	}
	return f.max, nil
}

func (f *fakeSource) ExtractToFile(table string, columns []string, path string, sinceColumn string, since time.Time, offset int) (int, error) {
	f.extractCalls++
	f.lastSince = since
	w, err := staging.NewWriter(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range f.rows[offset:] {
		if !r.updatedAt.After(since) {
			continue
		}
		if err := w.Write(rowMap(r)); err != nil {
			w.Close()
			return 0, err
		}
		n++
	}
	return n, w.Close()
}

func (f *fakeSource) ExtractAllToFile(table string, columns []string, path string) (int, error) {
	f.fullCalls++
	w, err := staging.NewWriter(path)
	if err != nil {
		return 0, err
	}
	for _, r := range f.rows {
		if err := w.Write(rowMap(r)); err != nil {
			w.Close()
			return 0, err
		}
	}
	return len(f.rows), w.Close()
}

func rowMap(r fakeRow) map[string]interface{} {
	return map[string]interface{}{
		"id":         r.id,
		"name":       fmt.Sprintf("row-%d", r.id),
		"updated_at": r.updatedAt.Format(time.RFC3339Nano),
	}
}

type fakeTarget struct {
	tables  map[string]map[string]map[string]interface{}
	created []string
	loadErr error

	upsertCalls  int
	replaceCalls int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{tables: make(map[string]map[string]map[string]interface{})}
}

func (f *fakeTarget) TableExists(name string) (bool, error) {
	_, ok := f.tables[name]
	return ok, nil
}

func (f *fakeTarget) CreateTable(name string, schema map[string]string) error {
	f.created = append(f.created, name)
	if _, ok := f.tables[name]; !ok {
		f.tables[name] = make(map[string]map[string]interface{})
	}
	return nil
}

func (f *fakeTarget) UpsertFromFile(name, key, path string, schema map[string]string) (int, error) {
	f.upsertCalls++
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	rows, err := readStaged(path)
	if err != nil {
		return 0, err
	}
	tbl := f.tables[name]
	if tbl == nil {
		return 0, errors.New("target table does not exist")
	}
	for _, row := range rows {
		tbl[fmt.Sprint(row[key])] = row
	}
	return len(rows), nil
}

func (f *fakeTarget) ReplaceFromFile(name, path string, schema map[string]string) (int, error) {
	f.replaceCalls++
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	rows, err := readStaged(path)
	if err != nil {
		return 0, err
	}
	tbl := make(map[string]map[string]interface{}, len(rows))
	for _, row := range rows {
		tbl[fmt.Sprint(row["id"])] = row
	}
	f.tables[name] = tbl
	return len(rows), nil
}

func readStaged(path string) ([]map[string]interface{}, error) {
	r, err := staging.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var rows []map[string]interface{}
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func recordWith(table string, lastSynced time.Time) watermark.Record {
	return watermark.Record{TableName: table, LastSyncedAt: lastSynced}
}

type fakeStore struct {
	recs    map[string]watermark.Record
	ensured int
	setErr  error
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]watermark.Record)}
}

func (f *fakeStore) EnsureStorageExists() error {
	f.ensured++
	return nil
}

func (f *fakeStore) Get(tableName string) (watermark.Record, error) {
	return f.recs[tableName], nil
}

func (f *fakeStore) Set(rec watermark.Record) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.recs[rec.TableName] = rec
	return nil
}
