// Package staging manages the temporary files that hold extracted rows
// between the extract and load phases of a table sync.
package staging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Artifact is a filesystem-backed staging file for one table's run.
// The creating action owns it exclusively until Release is called.
type Artifact struct {
	TableName string
	Path      string
}

// New creates a fresh staging file for the table under dir (os.TempDir
// when dir is empty). The file is world-readable so a separate load
// process can consume it.
func New(dir, tableName string) (*Artifact, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, fmt.Sprintf("tablesync-%s-*.ndjson", tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file for %s: %w", tableName, err)
	}
	path := f.Name()
	f.Close()
	if err := os.Chmod(path, 0644); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to set staging file permissions: %w", err)
	}
	return &Artifact{TableName: tableName, Path: path}, nil
}

// Release removes the staging file. Safe to call more than once.
func (a *Artifact) Release() error {
	if a == nil || a.Path == "" {
		return nil
	}
	err := os.Remove(a.Path)
	a.Path = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Writer appends rows to a staging file as newline-delimited JSON.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging file %s: %w", filepath.Base(path), err)
	}
	buf := bufio.NewWriter(f)
	return &Writer{f: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (w *Writer) Write(row map[string]interface{}) error {
	if err := w.enc.Encode(row); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count reports how many rows have been written so far.
func (w *Writer) Count() int {
	return w.n
}

func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader streams rows back out of a staging file.
type Reader struct {
	f   *os.File
	dec *json.Decoder
}

func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging file %s: %w", filepath.Base(path), err)
	}
	return &Reader{f: f, dec: json.NewDecoder(bufio.NewReader(f))}, nil
}

// Next returns the next row, or io.EOF when the file is exhausted.
func (r *Reader) Next() (map[string]interface{}, error) {
	var row map[string]interface{}
	if err := r.dec.Decode(&row); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode staged row: %w", err)
	}
	return row, nil
}

func (r *Reader) Close() error {
	return r.f.Close()
}
