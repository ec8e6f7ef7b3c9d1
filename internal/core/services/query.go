package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService runs read-only SQL against registered relational stores.
type QueryService struct {
	registry   driven.RegistryStore
	relational driven.RelationalStore
	workspace  domain.WorkspaceSettings
	maxRows    int
}

// NewQueryService creates a new query service.
func NewQueryService(
	registry driven.RegistryStore,
	relational driven.RelationalStore,
	workspace domain.WorkspaceSettings,
	maxRows int,
) *QueryService {
	if maxRows <= 0 {
		maxRows = domain.DefaultAgentMaxSQLRows
	}
	return &QueryService{registry: registry, relational: relational, workspace: workspace, maxRows: maxRows}
}

// Execute runs sql against the named database.
func (s *QueryService) Execute(ctx context.Context, database, sql string) (*domain.QueryResult, error) {
	if err := CheckReadOnly(sql); err != nil {
		return nil, err
	}

	name, err := s.resolve(ctx, database)
	if err != nil {
		return nil, err
	}

	path := StorePath(s.workspace, name+".db")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store for %q: %w", name, domain.ErrNotFound)
	}

	logger.Debug("SQL on %s: %s", name, sql)
	result, err := s.relational.Query(ctx, path, sql, s.maxRows)
	if err != nil {
		return nil, err
	}
	result.Database = name
	return result, nil
}

// Databases lists registered database names.
func (s *QueryService) Databases(ctx context.Context) ([]string, error) {
	reg, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	names := make([]string, len(reg.Databases))
	for i, e := range reg.Databases {
		names[i] = e.DatabaseName
	}
	return names, nil
}

// resolve maps a requested database to a registered name. An empty
// request picks the only registered database.
func (s *QueryService) resolve(ctx context.Context, database string) (string, error) {
	names, err := s.Databases(ctx)
	if err != nil {
		return "", err
	}
	database = strings.TrimSuffix(strings.TrimSpace(database), ".db")
	if database == "" {
		if len(names) == 1 {
			return names[0], nil
		}
		return "", fmt.Errorf("%w: database name required, registered: %s",
			domain.ErrInvalidInput, strings.Join(names, ", "))
	}
	for _, n := range names {
		if n == database {
			return n, nil
		}
	}
	return "", fmt.Errorf("database %q: %w", database, domain.ErrNotFound)
}

// CheckReadOnly accepts a single SELECT (or WITH ... SELECT) statement.
// The relational store enforces read-only access as well; this check
// gives the caller a clear error before a connection is opened.
func CheckReadOnly(sql string) error {
	stmt := strings.TrimSpace(stripSQLComments(sql))
	stmt = strings.TrimRight(stmt, "; \t\r\n")
	if stmt == "" {
		return fmt.Errorf("%w: empty query", domain.ErrReadOnlyViolation)
	}
	if hasStatementSeparator(stmt) {
		return fmt.Errorf("%w: multiple statements", domain.ErrReadOnlyViolation)
	}
	first := strings.ToUpper(strings.Fields(stmt)[0])
	if first != "SELECT" && first != "WITH" {
		return domain.ErrReadOnlyViolation
	}
	return nil
}

// closingQuote returns the rune ending a literal or quoted identifier that
// opens with r. SQLite accepts 'x', "x", `x` and [x].
func closingQuote(r rune) (rune, bool) {
	switch r {
	case '\'', '"', '`':
		return r, true
	case '[':
		return ']', true
	}
	return 0, false
}

// stripSQLComments removes -- and /* */ comments outside quoted text.
func stripSQLComments(sql string) string {
	var b strings.Builder
	inQuote := rune(0)
	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		closing, opens := closingQuote(r)
		switch {
		case inQuote != 0:
			b.WriteRune(r)
			if r == inQuote {
				inQuote = 0
			}
		case opens:
			inQuote = closing
			b.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			b.WriteRune(' ')
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hasStatementSeparator reports a semicolon outside quoted text.
func hasStatementSeparator(stmt string) bool {
	inQuote := rune(0)
	for _, r := range stmt {
		closing, opens := closingQuote(r)
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case opens:
			inQuote = closing
		case r == ';':
			return true
		}
	}
	return false
}

// FormatQueryResult renders a result the way the agent's SQL tool returns it.
func FormatQueryResult(result *domain.QueryResult) string {
	if len(result.Rows) == 0 {
		return "Query executed successfully but returned no results."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SQL Query Executed:\n%s\n\nResults (%d rows):\n\n", result.SQL, len(result.Rows))
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", 80))
	b.WriteString("\n")
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	if result.Truncated {
		b.WriteString("(results truncated)\n")
	}
	return b.String()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
