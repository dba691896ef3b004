package extractor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/a3tai/textricator/internal/text"
)

// CSVColumns is the header of the text CSV format.
var CSVColumns = []string{
	"page", "ulx", "uly", "lrx", "lry", "width", "height",
	"content", "font", "fontSize", "fontColor", "bgcolor", "link",
}

// WriteCSV writes texts in the text CSV format.
func WriteCSV(w io.Writer, texts iter.Seq[text.Text]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}
	for t := range texts {
		row := []string{
			strconv.Itoa(t.Page),
			formatFloat(t.ULX), formatFloat(t.ULY), formatFloat(t.LRX), formatFloat(t.LRY),
			formatFloat(t.Width()), formatFloat(t.Height()),
			t.Content, t.Font, formatFloat(t.FontSize),
			t.Color, t.BgColor, t.Link,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// OpenCSV loads a text CSV file.
func OpenCSV(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Format: FormatCSV, Op: "open", Err: err}
	}
	defer f.Close()

	texts, err := ReadCSV(f)
	if err != nil {
		return nil, &Error{Format: FormatCSV, Op: "read", Err: err}
	}
	return NewMemory(texts), nil
}

// ReadCSV parses the text CSV format. Columns are matched by header name, so
// their order may differ from CSVColumns and width/height are ignored.
func ReadCSV(r io.Reader) ([]text.Text, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"page", "ulx", "uly", "lrx", "lry", "content"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var out []text.Text
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		t, err := parseCSVRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, t)
	}
}

func parseCSVRow(rec []string, idx map[string]int) (text.Text, error) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	var (
		t    text.Text
		errs []error
	)
	num := func(name string) float64 {
		s := strings.TrimSpace(field(name))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return f
	}

	page, err := strconv.Atoi(strings.TrimSpace(field("page")))
	if err != nil {
		return t, fmt.Errorf("page: %w", err)
	}
	t = text.Text{
		Page:     page,
		ULX:      num("ulx"),
		ULY:      num("uly"),
		LRX:      num("lrx"),
		LRY:      num("lry"),
		Content:  field("content"),
		Font:     field("font"),
		FontSize: num("fontSize"),
		Color:    field("fontColor"),
		BgColor:  field("bgcolor"),
		Link:     field("link"),
	}
	return t, errors.Join(errs...)
}
