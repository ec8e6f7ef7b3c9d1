package services

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// DefaultPrompts are the built-in prompt templates. A PromptStore may
// override any of them from disk.
var DefaultPrompts = map[string]string{
	driven.PromptAgentSystem: defaultAgentSystemPrompt,
	driven.PromptTableSchema: defaultTableSchemaPrompt,
}

const defaultAgentSystemPrompt = `You are a research assistant with two tools.

- hybrid_search(query, limit): searches parsed documents. Every result starts
  with [CHUNK_ID: XXX000]. Use it for questions answered by reports, papers
  and other prose.
- sql_query(database, sql): runs one read-only SELECT against a database
  listed below. Use it for numbers, totals, rankings and trends.

Guidelines:
- Prefer several focused searches over one broad one.
- Only query tables and columns listed below. Quote table names that contain
  spaces or capitals with double quotes.
- Cite every chunk you rely on by its chunk ID. Never invent chunk IDs.
- If the tools return nothing useful, say so plainly.

When you are done, reply with a single JSON object and nothing else:
{"response": "<answer>", "citations": ["<chunk id>", ...], "data_summary": "<what the SQL results showed, or empty>"}

# Databases
{{if .Databases}}{{.Databases}}{{else}}No databases are registered.{{end}}`

const defaultTableSchemaPrompt = `## {{.Entry.DatabaseName}} ({{.Entry.DatabaseID}})
Source file: {{.Entry.SourceFile}}
{{- if .Entry.Text}}
{{.Entry.Text}}
{{- end}}
{{range .Entry.Tables}}
### Table "{{.TableName}}"{{if .SheetName}} (sheet "{{.SheetName}}"){{end}}
{{- if .Text}}
{{.Text}}
{{- end}}

| Column | Type | Description | Unit |
|--------|------|-------------|------|
{{- range .Schema.Columns}}
| {{.Name}} | {{.Type}} | {{.Description}} | {{.Unit}} |
{{- end}}
{{- if .Schema.Notes}}

Data characteristics:
{{- range .Schema.Notes}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Schema.FilterGuidelines}}

Filtering guidelines:
{{- range .Schema.FilterGuidelines}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Schema.ExampleQueries}}

Example queries:
{{- range .Schema.ExampleQueries}}
- {{.Title}}:
  {{.SQL}}
{{- end}}
{{- end}}
{{end}}`

// loadPrompt returns the named template from the store, falling back to
// the built-in default.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		if text, err := store.Load(name); err == nil && strings.TrimSpace(text) != "" {
			return text
		}
	}
	return DefaultPrompts[name]
}

// renderPrompt executes a prompt template against data.
func renderPrompt(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
