package domain

import (
	"fmt"
	"strconv"
)

const (
	// TagLength is the number of uppercase letters in a document tag.
	TagLength = 3

	// SequenceWidth is the number of digits in a chunk sequence number.
	SequenceWidth = 3

	// MaxSequence is the highest sequence number a chunk ID can carry.
	MaxSequence = 999

	// ChunkIDLength is the length of every well-formed chunk ID.
	ChunkIDLength = TagLength + SequenceWidth
)

// Chunk is a retrieval-ready unit of document text.
// Chunks are immutable once written; reprocessing a document yields a new tag.
type Chunk struct {
	// ChunkID is the document tag followed by a zero-padded sequence (e.g. "XYZ001").
	ChunkID string `json:"chunk_id"`

	// Text is the full markdown content of the segment.
	Text string `json:"text"`

	// FileName is the source document's file name.
	FileName string `json:"file_name"`

	// StartPage is the first page the segment covers (1-based).
	StartPage int `json:"start_page"`

	// EndPage is the last page the segment covers.
	EndPage int `json:"end_page"`
}

// Tag returns the document tag portion of the chunk ID.
func (c Chunk) Tag() string {
	if len(c.ChunkID) < TagLength {
		return ""
	}
	return c.ChunkID[:TagLength]
}

// Validate checks the chunk ID shape and the page range.
func (c Chunk) Validate() error {
	if _, _, err := ParseChunkID(c.ChunkID); err != nil {
		return err
	}
	if c.StartPage < 1 {
		return fmt.Errorf("%w: chunk %s start page %d", ErrInvalidInput, c.ChunkID, c.StartPage)
	}
	if c.EndPage < c.StartPage {
		return fmt.Errorf("%w: chunk %s end page %d before start page %d",
			ErrInvalidInput, c.ChunkID, c.EndPage, c.StartPage)
	}
	return nil
}

// ValidTag reports whether tag is exactly three uppercase ASCII letters.
func ValidTag(tag string) bool {
	if len(tag) != TagLength {
		return false
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] < 'A' || tag[i] > 'Z' {
			return false
		}
	}
	return true
}

// FormatChunkID joins a tag and a 1-based sequence number into a chunk ID.
func FormatChunkID(tag string, seq int) (string, error) {
	if !ValidTag(tag) {
		return "", fmt.Errorf("%w: tag %q", ErrInvalidInput, tag)
	}
	if seq < 1 {
		return "", fmt.Errorf("%w: sequence %d", ErrInvalidInput, seq)
	}
	if seq > MaxSequence {
		return "", fmt.Errorf("%w: sequence %d exceeds %d", ErrSequenceOverflow, seq, MaxSequence)
	}
	return fmt.Sprintf("%s%0*d", tag, SequenceWidth, seq), nil
}

// ParseChunkID splits a chunk ID into its tag and sequence number.
func ParseChunkID(id string) (string, int, error) {
	if len(id) != ChunkIDLength {
		return "", 0, fmt.Errorf("%w: chunk id %q", ErrInvalidInput, id)
	}
	tag := id[:TagLength]
	if !ValidTag(tag) {
		return "", 0, fmt.Errorf("%w: chunk id %q", ErrInvalidInput, id)
	}
	digits := id[TagLength:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", 0, fmt.Errorf("%w: chunk id %q", ErrInvalidInput, id)
		}
	}
	seq, _ := strconv.Atoi(digits)
	if seq < 1 {
		return "", 0, fmt.Errorf("%w: chunk id %q has zero sequence", ErrInvalidInput, id)
	}
	return tag, seq, nil
}

// IssuedTag records a document tag handed out by a chunking run.
type IssuedTag struct {
	Tag      string
	FileName string
	RunID    string
}
