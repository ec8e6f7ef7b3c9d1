// Package workspace stores pipeline artifacts as plain files in the
// workspace tree: raw parser output, chunk-form JSON, and the database
// registry. Every write goes to a temporary file first and is renamed
// into place.
package workspace
