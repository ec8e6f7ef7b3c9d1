package domain

// ChunkMode selects how a parser splits a document into segments.
type ChunkMode string

// Available chunk modes.
const (
	// ChunkModeVariable splits on semantic boundaries up to a size limit.
	ChunkModeVariable ChunkMode = "variable"

	// ChunkModeFixed splits into fixed-size windows.
	ChunkModeFixed ChunkMode = "fixed"
)

// IsValid returns true if the chunk mode is recognised.
func (m ChunkMode) IsValid() bool {
	return m == ChunkModeVariable || m == ChunkModeFixed
}

// String returns the string representation.
func (m ChunkMode) String() string {
	return string(m)
}

// Default chunking parameters.
const (
	DefaultChunkSize = 3200
)

// ChunkingOptions configures segmentation for a parse request.
type ChunkingOptions struct {
	// Mode is the segmentation strategy.
	Mode ChunkMode

	// SizeLimit is the target maximum segment size in characters.
	SizeLimit int

	// TableSummary asks the parser to summarise tables in place.
	TableSummary bool

	// FigureSummary asks the parser to describe figures in place.
	FigureSummary bool
}

// Segment is one ordered piece of a parsed document.
type Segment struct {
	// Content is the markdown text of the segment.
	Content string

	// Pages lists the source pages the segment's blocks came from.
	// Empty when the parser reported no page information.
	Pages []int
}

// HasPages reports whether the parser attached page numbers.
func (s Segment) HasPages() bool {
	return len(s.Pages) > 0
}

// StartPage returns the lowest page number, or 0 when unknown.
func (s Segment) StartPage() int {
	if len(s.Pages) == 0 {
		return 0
	}
	lo := s.Pages[0]
	for _, p := range s.Pages[1:] {
		if p < lo {
			lo = p
		}
	}
	return lo
}

// EndPage returns the highest page number, or 0 when unknown.
func (s Segment) EndPage() int {
	hi := 0
	for _, p := range s.Pages {
		if p > hi {
			hi = p
		}
	}
	return hi
}

// ParsedDocument is the output of a document parser.
type ParsedDocument struct {
	// FileName is the source document's file name.
	FileName string

	// Segments are in document order.
	Segments []Segment

	// NumPages is the page count reported by the parser.
	NumPages int

	// Raw is the parser's unmodified response, kept for audit.
	Raw []byte
}
