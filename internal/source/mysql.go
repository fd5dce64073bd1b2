package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/BartekS5/tablesync/pkg/database"
)

// MySQLSource extracts rows from a MySQL database. The DSN should
// include parseTime=true so timestamp columns scan as time.Time.
type MySQLSource struct {
	DB     *sql.DB
	dsn    string
	schema string
}

func NewMySQLSource(dsn, schema string) (*MySQLSource, error) {
	db, err := database.ConnectSQL("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &MySQLSource{DB: db, dsn: dsn, schema: schema}, nil
}

func (s *MySQLSource) Close() error {
	return s.DB.Close()
}

func (s *MySQLSource) EnsureConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.DB.PingContext(ctx); err == nil {
		return nil
	}
	s.DB.Close()
	db, err := database.ConnectSQL("mysql", s.dsn)
	if err != nil {
		return fmt.Errorf("failed to reconnect to MySQL: %w", err)
	}
	s.DB = db
	return nil
}

func (s *MySQLSource) TableExists(table string) (bool, error) {
	var one int
	err := s.DB.QueryRow(`
		SELECT 1 FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	`, s.schema, table).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return true, nil
}

func (s *MySQLSource) InferSchema(table string) ([]Column, error) {
	rows, err := s.DB.Query(`
		SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
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

func (s *MySQLSource) MaxTimestamp(table, column string) (time.Time, error) {
	query := fmt.Sprintf("SELECT MAX(`%s`) FROM %s", column, s.qualify(table))
	var ts sql.NullTime
	if err := s.DB.QueryRow(query).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to read max %s of %s: %w", column, table, err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time.UTC(), nil
}

func (s *MySQLSource) ExtractToFile(table string, columns []string, path string, sinceColumn string, since time.Time, offset int) (int, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE `%s` > ? ORDER BY `%s`",
		backtickList(columns), s.qualify(table), sinceColumn, sinceColumn)
	if offset > 0 {
		// MySQL has no OFFSET without LIMIT.
		query += fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	rows, err := s.DB.Query(query, since)
	if err != nil {
		return 0, fmt.Errorf("incremental extract of %s failed: %w", table, err)
	}
	defer rows.Close()
	return stageRows(rows, path)
}

func (s *MySQLSource) ExtractAllToFile(table string, columns []string, path string) (int, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", backtickList(columns), s.qualify(table))
	rows, err := s.DB.Query(query)
	if err != nil {
		return 0, fmt.Errorf("full extract of %s failed: %w", table, err)
	}
	defer rows.Close()
	return stageRows(rows, path)
}

// qualify pins queries to the configured schema so they read from it
// even when the DSN's default database differs.
func (s *MySQLSource) qualify(table string) string {
	if s.schema == "" {
		return fmt.Sprintf("`%s`", table)
	}
	return fmt.Sprintf("`%s`.`%s`", s.schema, table)
}

func backtickList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "`" + c + "`"
	}
	return strings.Join(quoted, ", ")
}
