package utils

import (
	"fmt"
	"strings"
	"time"
)

// temporalTypes are the source column types whose values must be
// restored to time.Time after a trip through the NDJSON staging file.
var temporalTypes = map[string]bool{
	"datetime":       true,
	"datetime2":      true,
	"smalldatetime":  true,
	"datetimeoffset": true,
	"date":           true,
	"timestamp":      true,
}

// IsTemporal reports whether a source column type holds an instant.
func IsTemporal(sqlType string) bool {
	return temporalTypes[strings.ToLower(sqlType)]
}

// RestoreDateTime converts a staged value back into time.Time.
// Staged rows are JSON, so instants arrive as strings in one of a few
// layouts depending on the source driver.
func RestoreDateTime(val interface{}) (interface{}, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case string:
		formats := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		for _, f := range formats {
			if t, err := time.Parse(f, v); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return RestoreDateTime(string(v))
	default:
		return val, nil
	}
}

// RestoreRow applies RestoreDateTime to every temporal column in row,
// in place, using the plan's inferred column types.
func RestoreRow(row map[string]interface{}, schema map[string]string) error {
	for col, typ := range schema {
		if !IsTemporal(typ) {
			continue
		}
		val, ok := row[col]
		if !ok {
			continue
		}
		restored, err := RestoreDateTime(val)
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		row[col] = restored
	}
	return nil
}
