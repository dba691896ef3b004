// Package output serializes record trees.
package output

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/a3tai/textricator/internal/record"
)

// Writer consumes a record sequence. Write is called once; Close flushes
// and releases anything the writer opened.
type Writer interface {
	Write(records iter.Seq2[*record.Record, error]) error
	Close() error
}

// Format names accepted by New and Create.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatJSONFlat = "json-flat"
	FormatXML      = "xml"
	FormatXLSX     = "xlsx"
	FormatSQLite   = "sqlite"
	FormatNull     = "null"
)

// Formats lists every supported format.
var Formats = []string{FormatCSV, FormatJSON, FormatJSONFlat, FormatXML, FormatXLSX, FormatSQLite, FormatNull}

// Extension returns the file extension used for format, without the dot.
// Null has none.
func Extension(format string) string {
	switch f := strings.ToLower(format); f {
	case FormatJSONFlat:
		return FormatJSON
	case FormatSQLite:
		return "db"
	case FormatNull:
		return ""
	default:
		return f
	}
}

// New returns a writer for format that writes to w. SQLite needs a file and
// is only available through Create.
func New(format string, w io.Writer, m record.Model) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return newCSV(w, m)
	case FormatJSON:
		return newJSON(w), nil
	case FormatJSONFlat:
		return newJSONFlat(w, m)
	case FormatXML:
		return newXML(w), nil
	case FormatXLSX:
		return newXLSX(w, m)
	case FormatNull:
		return Null{}, nil
	case FormatSQLite:
		return nil, fmt.Errorf("output format %s needs a file path", format)
	}
	return nil, fmt.Errorf("unsupported output format %q, expected one of %s", format, strings.Join(Formats, ", "))
}

// Create opens path for format. The file is closed by the writer's Close.
func Create(format, path string, m record.Model) (Writer, error) {
	if strings.EqualFold(format, FormatSQLite) {
		return OpenSQLite(path, m)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := New(format, f, m)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileWriter{Writer: w, f: f}, nil
}

type fileWriter struct {
	Writer
	f *os.File
}

func (w *fileWriter) Close() error {
	err := w.Writer.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Null discards records, still pulling the sequence so parse errors surface.
type Null struct{}

func (Null) Write(records iter.Seq2[*record.Record, error]) error {
	for _, err := range records {
		if err != nil {
			return err
		}
	}
	return nil
}

func (Null) Close() error { return nil }

// Count wraps records, counting the records pulled through it.
func Count(records iter.Seq2[*record.Record, error], n *int) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		for rec, err := range records {
			if err == nil {
				*n++
			}
			if !yield(rec, err) {
				return
			}
		}
	}
}
