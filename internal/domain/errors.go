package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMalformedRecord is returned when a record fails ingestion checks.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrRecordNotFound is returned when an update targets an unknown key.
	ErrRecordNotFound = errors.New("record not found")

	// ErrReadOnlySource is returned by data sources that cannot be mutated.
	ErrReadOnlySource = errors.New("data source is read-only")
)

// MalformedRecordError lists the offending fields of one record.
// Row is the 1-based line in the source file, or 0 for API input.
type MalformedRecordError struct {
	Row    int
	Fields map[string]string
}

func (e *MalformedRecordError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}

	if e.Row > 0 {
		return fmt.Sprintf("malformed record at row %d: %s", e.Row, strings.Join(parts, "; "))
	}
	return "malformed record: " + strings.Join(parts, "; ")
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}
