// Package local implements the document parser port without any network
// service. DOCX text is read from the archive, PDF text comes from the
// pdftotext tool, and plain text and markdown are read directly. Text is
// then segmented on this machine.
package local
