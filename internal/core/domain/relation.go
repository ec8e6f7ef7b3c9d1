package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// ColumnType is the storage class a column is declared with.
type ColumnType string

// Column types produced by inference.
const (
	ColumnTypeText    ColumnType = "TEXT"
	ColumnTypeInteger ColumnType = "INTEGER"
	ColumnTypeReal    ColumnType = "REAL"
)

// IsValid returns true if the column type is recognised.
func (t ColumnType) IsValid() bool {
	switch t {
	case ColumnTypeText, ColumnTypeInteger, ColumnTypeReal:
		return true
	default:
		return false
	}
}

// NormaliseColumnType maps a declared SQLite type to one of the three buckets
// using SQLite's affinity rules.
func NormaliseColumnType(declared string) ColumnType {
	d := strings.ToUpper(declared)
	switch {
	case strings.Contains(d, "INT"):
		return ColumnTypeInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return ColumnTypeText
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return ColumnTypeReal
	default:
		return ColumnTypeText
	}
}

// Compatible reports whether a registry declaration matches live storage.
// A REAL declaration accepts INTEGER storage.
func Compatible(declared, actual ColumnType) bool {
	if declared == actual {
		return true
	}
	return declared == ColumnTypeReal && actual == ColumnTypeInteger
}

// SourceFormat distinguishes single-table from multi-sheet tabular sources.
type SourceFormat string

// Source formats.
const (
	SourceFormatFlat     SourceFormat = "flat"
	SourceFormatWorkbook SourceFormat = "workbook"
	SourceFormatUnknown  SourceFormat = ""
)

// FormatForFile classifies a tabular file by extension.
func FormatForFile(name string) SourceFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return SourceFormatFlat
	case ".xlsx", ".xlsm", ".xls":
		return SourceFormatWorkbook
	default:
		return SourceFormatUnknown
	}
}

// Sheet is one grid of cells. The first row is the header.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is a tabular source as read from disk.
type Workbook struct {
	FileName string
	Format   SourceFormat
	Sheets   []Sheet
}

// Column is a named, typed relation column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Relation is a table ready to be published to a relational store.
// Row values are nil, int64, float64 or string.
type Relation struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// RelationInfo describes a relation as it exists in a live store.
type RelationInfo struct {
	Name     string   `json:"name"`
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"row_count"`
}

// Column returns the named column.
func (r RelationInfo) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// ValidateRelationName checks that a sheet name is usable verbatim as a
// quoted SQLite table name.
func ValidateRelationName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty relation name", ErrInvalidIdentifier)
	}
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return fmt.Errorf("%w: %q uses the reserved sqlite_ prefix", ErrInvalidIdentifier, name)
	}
	for _, r := range name {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains control characters", ErrInvalidIdentifier, name)
		}
	}
	return nil
}

// QuoteIdentifier quotes a name for use as an SQLite identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QueryResult is the tabular outcome of a read-only query.
type QueryResult struct {
	Database  string   `json:"database"`
	SQL       string   `json:"sql"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}
