package extractor

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/textricator/internal/text"
)

// defaultPageHeight is US Letter, used when a page declares no MediaBox.
const defaultPageHeight = 792.0

// PDF extracts text from a PDF file. Glyphs are read with ledongthuc/pdf and
// merged into word fragments; page sizes come from pdfcpu so coordinates can
// be flipped to a top-down space.
type PDF struct {
	file   *os.File
	reader *pdf.Reader
	dims   []types.Dim
}

// OpenPDF opens a PDF file.
func OpenPDF(path string) (*PDF, error) {
	// Page sizes are optional: a file pdfcpu rejects falls back to MediaBox
	// lookup on the ledongthuc page tree.
	dims, _ := pageDims(path)

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &Error{Format: FormatPDF, Op: "open", Err: err}
	}
	return &PDF{file: f, reader: r, dims: dims}, nil
}

func pageDims(path string) ([]types.Dim, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return nil, &Error{Format: FormatPDF, Op: "read context", Err: err}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, &Error{Format: FormatPDF, Op: "page count", Err: err}
	}
	return ctx.PageDims()
}

func (p *PDF) PageCount() int { return p.reader.NumPage() }

func (p *PDF) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

// Extract returns the words of page. ledongthuc/pdf panics on some malformed
// content streams; those panics are returned as errors.
func (p *PDF) Extract(page int) (texts []text.Text, err error) {
	if page < 1 || page > p.reader.NumPage() {
		return nil, &Error{Format: FormatPDF, Op: "extract", Err: fmt.Errorf("invalid page number %d (document has %d pages)", page, p.reader.NumPage())}
	}
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, &Error{Format: FormatPDF, Op: "extract", Err: fmt.Errorf("page %d: %v", page, r)}
		}
	}()

	pg := p.reader.Page(page)
	if pg.V.IsNull() {
		return nil, nil
	}
	return mergeGlyphs(page, p.height(page, pg), pg.Content().Text), nil
}

func (p *PDF) height(page int, pg pdf.Page) float64 {
	if page <= len(p.dims) && p.dims[page-1].Height > 0 {
		return p.dims[page-1].Height
	}
	v := pg.V
	for range 16 {
		if box := v.Key("MediaBox"); box.Len() == 4 {
			return box.Index(3).Float64() - box.Index(1).Float64()
		}
		if v = v.Key("Parent"); v.IsNull() {
			break
		}
	}
	return defaultPageHeight
}

// fragment is a word being assembled from glyphs, in PDF coordinates.
type fragment struct {
	x0, x1, y float64
	font      string
	size      float64
	b         strings.Builder
}

// mergeGlyphs joins consecutive glyphs on one baseline with the same font
// into words. Whitespace glyphs and horizontal gaps end a word.
func mergeGlyphs(page int, height float64, glyphs []pdf.Text) []text.Text {
	var (
		out []text.Text
		cur *fragment
	)
	flush := func() {
		if cur == nil {
			return
		}
		size := cur.size
		if size <= 0 {
			size = 12
		}
		out = append(out, text.Text{
			Page:     page,
			ULX:      cur.x0,
			ULY:      height - cur.y - size,
			LRX:      cur.x1,
			LRY:      height - cur.y,
			Content:  norm.NFC.String(cur.b.String()),
			Font:     cur.font,
			FontSize: cur.size,
		})
		cur = nil
	}

	for _, g := range glyphs {
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			continue
		}
		if cur != nil && !continues(cur, g) {
			flush()
		}
		if cur == nil {
			cur = &fragment{x0: g.X, y: g.Y, font: g.Font, size: g.FontSize}
		}
		cur.b.WriteString(g.S)
		cur.x1 = g.X + g.W
	}
	flush()
	return out
}

func continues(f *fragment, g pdf.Text) bool {
	if g.Font != f.font || g.FontSize != f.size {
		return false
	}
	if math.Abs(g.Y-f.y) > 0.5 {
		return false
	}
	gap := g.X - f.x1
	tolerance := math.Max(f.size, 1) * 0.25
	return gap <= tolerance && gap >= -tolerance
}
