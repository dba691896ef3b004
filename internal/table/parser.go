package table

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/a3tai/textricator/internal/record"
	"github.com/a3tai/textricator/internal/text"
)

// Parser turns pages of row-grouped text into one record per table row.
type Parser struct {
	cfg        *Config
	cols       []float64
	valueTypes map[string]*record.ValueType
	pages      text.PageFilter
	logger     *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// NewParser validates the columns and page selection of cfg.
func NewParser(cfg *Config, opts ...Option) (*Parser, error) {
	if cfg == nil {
		return nil, errors.New("table: nil config")
	}
	if len(cfg.Cols) == 0 {
		return nil, errors.New("table: no columns configured")
	}
	cols := make([]float64, len(cfg.Cols))
	for i, c := range cfg.Cols {
		if i > 0 && c.X <= cols[i-1] {
			return nil, fmt.Errorf("table: column %q at %g does not start after the previous column", c.ID, c.X)
		}
		cols[i] = c.X
	}

	pages := text.AllPages
	if cfg.Pages != "" {
		f, err := text.ParsePages(cfg.Pages)
		if err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
		pages = f
	}

	p := &Parser{cfg: cfg, cols: cols, valueTypes: cfg.ValueTypes(), pages: pages}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Parse yields the rows of each selected page in page order and top to
// bottom within a page.
func (p *Parser) Parse(pages iter.Seq[text.Page]) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		for page := range pages {
			if !p.pages(page.Number) {
				continue
			}
			if p.cfg.PageConfigs[page.Number].Skip {
				p.logger.Debug("skipping page", "page", page.Number)
				continue
			}
			for _, row := range p.grid(page).merged(p.maxRowDistance()) {
				rec, err := p.record(page.Number, row)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

func (p *Parser) maxRowDistance() float64 {
	if p.cfg.MaxRowDistance == nil {
		return 0
	}
	return *p.cfg.MaxRowDistance
}

func (p *Parser) grid(page text.Page) *grid {
	b := p.cfg.bounds(page.Number)
	g := newGrid(len(p.cols))
	for _, t := range page.Texts {
		// The last column ends before right.
		if t.ULY < b.top || t.ULY > b.bottom || t.ULX < b.left || t.ULX >= b.right {
			continue
		}
		col := p.column(t.ULX)
		if col < 0 {
			continue
		}
		g.put(t.ULY, col, t.ULX, record.Value{Text: t.Content, Link: t.Link})
	}
	return g
}

// column returns the index of the column x falls in, or -1 left of the first.
func (p *Parser) column(x float64) int {
	i, found := slices.BinarySearch(p.cols, x)
	if found {
		return i
	}
	return i - 1
}

func (p *Parser) record(page int, row gridRow) (*record.Record, error) {
	rec := record.New(page, RowType)
	for i, col := range p.cfg.Cols {
		v, err := record.Calculate(p.valueTypes[col.ID], row[i].values())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.ID, err)
		}
		rec.Values[col.ID] = v
	}
	return rec, nil
}
