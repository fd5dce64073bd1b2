package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/BartekS5/tablesync/internal/staging"
	"github.com/BartekS5/tablesync/pkg/database"
)

// SQLServerSource extracts rows from a MS SQL Server database.
type SQLServerSource struct {
	DB     *sql.DB
	dsn    string
	schema string
}

func NewSQLServerSource(dsn, schema string) (*SQLServerSource, error) {
	db, err := database.ConnectSQL("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	if schema == "" {
		schema = "dbo"
	}
	return &SQLServerSource{DB: db, dsn: dsn, schema: schema}, nil
}

func (s *SQLServerSource) Close() error {
	return s.DB.Close()
}

// EnsureConnection pings the server and reopens the connection when a
// long-idle extraction session has been dropped.
func (s *SQLServerSource) EnsureConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.DB.PingContext(ctx); err == nil {
		return nil
	}
	s.DB.Close()
	db, err := database.ConnectSQL("sqlserver", s.dsn)
	if err != nil {
		return fmt.Errorf("failed to reconnect to SQL Server: %w", err)
	}
	s.DB = db
	return nil
}

func (s *SQLServerSource) TableExists(table string) (bool, error) {
	var one int
	err := s.DB.QueryRow(`
		SELECT 1 FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
	`, s.schema, table).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return true, nil
}

func (s *SQLServerSource) InferSchema(table string) ([]Column, error) {
	rows, err := s.DB.Query(`
		SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`, s.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *SQLServerSource) MaxTimestamp(table, column string) (time.Time, error) {
	query := fmt.Sprintf("SELECT MAX([%s]) FROM %s", column, s.qualify(table))
	var ts sql.NullTime
	if err := s.DB.QueryRow(query).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to read max %s of %s: %w", column, table, err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time.UTC(), nil
}

func (s *SQLServerSource) ExtractToFile(table string, columns []string, path string, sinceColumn string, since time.Time, offset int) (int, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE [%s] > @p1 ORDER BY [%s] OFFSET %d ROWS",
		bracketList(columns), s.qualify(table), sinceColumn, sinceColumn, offset)
	rows, err := s.DB.Query(query, since)
	if err != nil {
		return 0, fmt.Errorf("incremental extract of %s failed: %w", table, err)
	}
	defer rows.Close()
	return stageRows(rows, path)
}

func (s *SQLServerSource) ExtractAllToFile(table string, columns []string, path string) (int, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", bracketList(columns), s.qualify(table))
	rows, err := s.DB.Query(query)
	if err != nil {
		return 0, fmt.Errorf("full extract of %s failed: %w", table, err)
	}
	defer rows.Close()
	return stageRows(rows, path)
}

func (s *SQLServerSource) qualify(table string) string {
	return fmt.Sprintf("[%s].[%s]", s.schema, table)
}

func bracketList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "[" + c + "]"
	}
	return strings.Join(quoted, ", ")
}

// stageRows drains a result set into the staging file at path.
func stageRows(rows *sql.Rows, path string) (int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	w, err := staging.NewWriter(path)
	if err != nil {
		return 0, err
	}

	for rows.Next() {
		m, err := scanRowMap(rows, cols)
		if err != nil {
			w.Close()
			return 0, err
		}
		if err := w.Write(m); err != nil {
			w.Close()
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		w.Close()
		return 0, err
	}
	n := w.Count()
	if err := w.Close(); err != nil {
		return 0, err
	}
	return n, nil
}
