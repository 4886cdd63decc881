// Package segment turns raw uploaded documents into ordered, overlapping
// text chunks ready for embedding. It supports PDF, DOC/DOCX, and HTML
// inputs; anything else is rejected with ErrUnsupportedFormat before any
// content is touched.
//
// Segmentation is a pure function over bytes: no temp files, no retained
// handles, no embedding. Chunk boundaries follow a fixed-size rune window
// with a fixed overlap so that indexing runs stay comparable as long as the
// configuration is unchanged.
package segment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for any input that is not PDF, DOC/DOCX,
// or HTML.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Format identifies a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOC  Format = "doc"
	FormatHTML Format = "html"
)

// DetectFormat maps a filename extension to a Format. It performs no I/O;
// unknown extensions fail with ErrUnsupportedFormat.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".doc", ".docx":
		return FormatDOC, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// DefaultChunkSize is the nominal chunk length in runes.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the nominal overlap between consecutive chunks in runes.
const DefaultChunkOverlap = 200

// Segmenter extracts text from a document and splits it into chunks.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithChunkSize sets the chunk size in runes. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithChunkOverlap sets the overlap in runes. Negative values are ignored.
func WithChunkOverlap(n int) Option {
	return func(s *Segmenter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// New constructs a Segmenter with the given options. An overlap at or above
// the chunk size is clamped to a quarter of the chunk size.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{chunkSize: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, o := range opts {
		o(s)
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the configured chunk size in runes.
func (s *Segmenter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap in runes.
func (s *Segmenter) ChunkOverlap() int { return s.overlap }

// Segment extracts the text content of a document and returns its chunks in
// original document order. An empty document yields no chunks and no error.
func (s *Segmenter) Segment(content []byte, format Format) ([]string, error) {
	text, err := Extract(content, format)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

// Extract returns the plain text of a document in the given format.
func Extract(content []byte, format Format) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(content)
	case FormatDOC:
		return extractDOCX(content)
	case FormatHTML:
		return extractHTML(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Split cuts text into rune windows of the configured size, each overlapping
// its successor by the configured overlap. Every chunk except the last has
// exactly the nominal size; concatenating the chunks minus their overlaps
// reconstructs the input.
func (s *Segmenter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = 1
	}

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
