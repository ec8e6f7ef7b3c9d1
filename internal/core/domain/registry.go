package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DatabaseIDPrefix starts every registry database ID.
const DatabaseIDPrefix = "DB"

// FlatTableName is the single relation produced from a flat (CSV) source.
const FlatTableName = "data"

// Registry is the catalogue of relational stores the agent may query.
type Registry struct {
	Databases []DatabaseEntry `json:"databases" yaml:"databases"`
}

// DatabaseEntry describes one relational store.
type DatabaseEntry struct {
	// DatabaseID is "DB" plus a zero-padded counter (e.g. "DB001").
	DatabaseID string `json:"database_id" yaml:"database_id"`

	// DatabaseName is the source file stem and the store's base name.
	DatabaseName string `json:"database_name" yaml:"database_name"`

	// SourceFile is the tabular file the store was built from.
	SourceFile string `json:"source_file" yaml:"source_file"`

	// Text is a free-text description for the agent.
	Text string `json:"text" yaml:"text"`

	// Tables describe the relations in the store.
	Tables []TableDescriptor `json:"tables" yaml:"tables"`
}

// Format returns the source format implied by SourceFile.
func (e DatabaseEntry) Format() SourceFormat {
	return FormatForFile(e.SourceFile)
}

// Table returns the descriptor with the given name.
func (e DatabaseEntry) Table(name string) (TableDescriptor, bool) {
	for _, t := range e.Tables {
		if strings.EqualFold(t.TableName, name) {
			return t, true
		}
	}
	return TableDescriptor{}, false
}

// TableDescriptor describes one relation of a store.
type TableDescriptor struct {
	TableName string `json:"table_name" yaml:"table_name"`

	// SheetName is set only for relations that came from a workbook sheet.
	SheetName string `json:"sheet_name,omitempty" yaml:"sheet_name,omitempty"`

	Text   string      `json:"text" yaml:"text"`
	Schema TableSchema `json:"schema" yaml:"schema"`
}

// TableSchema is the structured schema contract for a relation.
// Markdown prompts are rendered from it, never the other way round.
type TableSchema struct {
	Columns          []ColumnSchema `json:"columns" yaml:"columns"`
	Notes            []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	FilterGuidelines []string       `json:"filter_guidelines,omitempty" yaml:"filter_guidelines,omitempty"`
	ExampleQueries   []ExampleQuery `json:"example_queries,omitempty" yaml:"example_queries,omitempty"`
}

// Column returns the column schema with the given name.
func (s TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// ColumnSchema describes one column.
type ColumnSchema struct {
	Name        string     `json:"name" yaml:"name"`
	Type        ColumnType `json:"type" yaml:"type"`
	Description string     `json:"description" yaml:"description"`
	Unit        string     `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// ExampleQuery is a worked SQL example shown to the agent.
type ExampleQuery struct {
	Title string `json:"title" yaml:"title"`
	SQL   string `json:"sql" yaml:"sql"`
}

// FormatDatabaseID renders the n-th database ID.
func FormatDatabaseID(n int) string {
	return fmt.Sprintf("%s%03d", DatabaseIDPrefix, n)
}

// ParseDatabaseID extracts the counter from a database ID.
func ParseDatabaseID(id string) (int, error) {
	if !strings.HasPrefix(id, DatabaseIDPrefix) || len(id) < len(DatabaseIDPrefix)+3 {
		return 0, fmt.Errorf("%w: database id %q", ErrInvalidInput, id)
	}
	digits := id[len(DatabaseIDPrefix):]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: database id %q", ErrInvalidInput, id)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: database id %q", ErrInvalidInput, id)
	}
	return n, nil
}

// NextDatabaseID returns the ID that follows the highest one in use.
func (r Registry) NextDatabaseID() string {
	highest := 0
	for _, e := range r.Databases {
		if n, err := ParseDatabaseID(e.DatabaseID); err == nil && n > highest {
			highest = n
		}
	}
	return FormatDatabaseID(highest + 1)
}

// Entry returns the entry with the given database name.
func (r Registry) Entry(name string) (DatabaseEntry, bool) {
	for _, e := range r.Databases {
		if e.DatabaseName == name {
			return e, true
		}
	}
	return DatabaseEntry{}, false
}

// IssueSeverity grades a registry validation finding.
type IssueSeverity string

// Severities.
const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// RegistryIssue is one validation finding.
type RegistryIssue struct {
	Severity IssueSeverity `json:"severity"`
	Database string        `json:"database"`
	Table    string        `json:"table,omitempty"`
	Column   string        `json:"column,omitempty"`
	Message  string        `json:"message"`
}

func (i RegistryIssue) String() string {
	loc := i.Database
	if i.Table != "" {
		loc += "." + i.Table
	}
	if i.Column != "" {
		loc += "." + i.Column
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, loc, i.Message)
}

// HasErrors reports whether any issue is error-severity.
func HasErrors(issues []RegistryIssue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Check runs the structural checks that need no live store.
func (r Registry) Check() []RegistryIssue {
	var issues []RegistryIssue
	last := 0
	names := make(map[string]bool)
	for _, e := range r.Databases {
		issues = append(issues, e.Check()...)

		n, err := ParseDatabaseID(e.DatabaseID)
		switch {
		case err != nil:
			// reported by the entry check
		case n <= last:
			issues = append(issues, RegistryIssue{
				Severity: SeverityError, Database: e.DatabaseName,
				Message: fmt.Sprintf("database_id %s does not follow %s", e.DatabaseID, FormatDatabaseID(last)),
			})
		default:
			last = n
		}

		if names[e.DatabaseName] {
			issues = append(issues, RegistryIssue{
				Severity: SeverityError, Database: e.DatabaseName,
				Message: "duplicate database_name",
			})
		}
		names[e.DatabaseName] = true
	}
	return issues
}

// Check validates one entry in isolation.
func (e DatabaseEntry) Check() []RegistryIssue {
	var issues []RegistryIssue
	add := func(table, column, format string, args ...any) {
		issues = append(issues, RegistryIssue{
			Severity: SeverityError, Database: e.DatabaseName,
			Table: table, Column: column, Message: fmt.Sprintf(format, args...),
		})
	}

	if _, err := ParseDatabaseID(e.DatabaseID); err != nil {
		add("", "", "malformed database_id %q", e.DatabaseID)
	}
	if e.DatabaseName == "" {
		add("", "", "database_name is empty")
	}
	if e.SourceFile != "" {
		stem := strings.TrimSuffix(filepath.Base(e.SourceFile), filepath.Ext(e.SourceFile))
		if stem != e.DatabaseName {
			add("", "", "database_name must equal source file stem %q", stem)
		}
	}
	if len(e.Tables) == 0 {
		add("", "", "no tables described")
	}

	format := e.Format()
	if format == SourceFormatFlat {
		if len(e.Tables) != 1 || e.Tables[0].TableName != FlatTableName {
			add("", "", "flat source must describe exactly one table named %q", FlatTableName)
		}
	}

	seen := make(map[string]bool)
	for _, t := range e.Tables {
		key := strings.ToLower(t.TableName)
		if t.TableName == "" {
			add("", "", "table_name is empty")
		} else if seen[key] {
			add(t.TableName, "", "duplicate table_name")
		}
		seen[key] = true

		switch format {
		case SourceFormatFlat:
			if t.SheetName != "" {
				add(t.TableName, "", "sheet_name is only valid for workbook sources")
			}
		case SourceFormatWorkbook:
			if t.SheetName != t.TableName {
				add(t.TableName, "", "sheet_name %q must equal table_name", t.SheetName)
			}
		}

		cols := make(map[string]bool)
		for _, c := range t.Schema.Columns {
			ckey := strings.ToLower(c.Name)
			if c.Name == "" {
				add(t.TableName, "", "column name is empty")
			} else if cols[ckey] {
				add(t.TableName, c.Name, "duplicate column")
			}
			cols[ckey] = true
			if !c.Type.IsValid() {
				add(t.TableName, c.Name, "unknown column type %q", c.Type)
			}
		}
	}
	return issues
}
