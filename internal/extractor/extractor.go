// Package extractor supplies positioned text from documents: PDF files, and
// CSV or JSON files of previously extracted text.
package extractor

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/a3tai/textricator/internal/text"
)

// Extractor yields the text of a document one page at a time.
type Extractor interface {
	// PageCount returns the number of pages, numbered from 1.
	PageCount() int
	// Extract returns the text of page in reading order.
	Extract(page int) ([]text.Text, error)
	Close() error
}

// Format names accepted by Open.
const (
	FormatPDF           = "pdf"
	FormatPDFLedongthuc = "pdf.ledongthuc"
	FormatCSV           = "csv"
	FormatJSON          = "json"
)

// Formats lists the formats Open accepts.
var Formats = []string{FormatPDF, FormatPDFLedongthuc, FormatCSV, FormatJSON}

// Error wraps a failure in one extractor operation.
type Error struct {
	Format string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s extractor: %s: %v", e.Format, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FormatOf guesses the format of path from its extension.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Open opens path with the extractor for format. A blank format is taken
// from the file extension.
func Open(path, format string) (Extractor, error) {
	if format == "" {
		format = FormatOf(path)
	}
	var (
		ex  Extractor
		err error
	)
	switch strings.ToLower(format) {
	case FormatPDF, FormatPDFLedongthuc:
		ex, err = OpenPDF(path)
	case FormatCSV:
		ex, err = OpenCSV(path)
	case FormatJSON:
		ex, err = OpenJSON(path)
	default:
		return nil, &Error{Format: format, Op: "open", Err: fmt.Errorf("unsupported format, expected one of %s", strings.Join(Formats, ", "))}
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// Source reads selected pages of an Extractor as sequences. Iteration stops
// at the first extraction error, which Err then reports.
type Source struct {
	ex    Extractor
	pages text.PageFilter
	ctx   context.Context
	err   error
}

// NewSource reads the pages of ex accepted by pages; nil selects all pages.
func NewSource(ex Extractor, pages text.PageFilter) *Source {
	if pages == nil {
		pages = text.AllPages
	}
	return &Source{ex: ex, pages: pages, ctx: context.Background()}
}

// WithContext stops iteration before the next page once ctx is done.
func (s *Source) WithContext(ctx context.Context) *Source {
	s.ctx = ctx
	return s
}

// Pages yields each selected page.
func (s *Source) Pages() iter.Seq[text.Page] {
	return func(yield func(text.Page) bool) {
		for n := 1; n <= s.ex.PageCount(); n++ {
			if !s.pages(n) {
				continue
			}
			if err := s.ctx.Err(); err != nil {
				s.err = err
				return
			}
			texts, err := s.ex.Extract(n)
			if err != nil {
				s.err = fmt.Errorf("page %d: %w", n, err)
				return
			}
			if !yield(text.Page{Number: n, Texts: texts}) {
				return
			}
		}
	}
}

// Texts yields the text of each selected page in page order.
func (s *Source) Texts() iter.Seq[text.Text] {
	return func(yield func(text.Text) bool) {
		for page := range s.Pages() {
			for _, t := range page.Texts {
				if !yield(t) {
					return
				}
			}
		}
	}
}

// Err returns the error that ended iteration, if any.
func (s *Source) Err() error { return s.err }

// Memory is an Extractor over text already in memory. Pages need not be
// contiguous; the page count is the highest page seen.
type Memory struct {
	pages map[int][]text.Text
	count int
}

// NewMemory groups texts by page, keeping their order within a page.
func NewMemory(texts []text.Text) *Memory {
	m := &Memory{pages: map[int][]text.Text{}}
	for _, t := range texts {
		m.pages[t.Page] = append(m.pages[t.Page], t)
		m.count = max(m.count, t.Page)
	}
	return m
}

func (m *Memory) PageCount() int { return m.count }

func (m *Memory) Extract(page int) ([]text.Text, error) { return m.pages[page], nil }

func (m *Memory) Close() error { return nil }
