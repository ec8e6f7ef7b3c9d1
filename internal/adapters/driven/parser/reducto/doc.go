// Package reducto implements the document parser port against the Reducto
// parsing API: upload the file, run a parse job with chunking options, and
// map the returned chunks to ordered segments with page ranges.
package reducto
