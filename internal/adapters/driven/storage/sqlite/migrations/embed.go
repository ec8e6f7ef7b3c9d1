// Package migrations holds the schema for the chunk index database.
package migrations

import "embed"

// FS holds the numbered up/down scripts applied in order by the store.
//
//go:embed *.sql
var FS embed.FS
