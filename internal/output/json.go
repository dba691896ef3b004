package output

import (
	"encoding/json"
	"io"
	"iter"
	"strconv"

	"github.com/a3tai/textricator/internal/record"
)

// JSON writes an array of nested records.
type JSON struct {
	w io.Writer
}

func newJSON(w io.Writer) *JSON { return &JSON{w: w} }

type jsonRecord struct {
	PageNumber int                     `json:"pageNumber"`
	TypeID     string                  `json:"typeId"`
	Values     map[string]record.Value `json:"values"`
	Children   map[string][]jsonRecord `json:"children,omitempty"`
}

func toJSON(rec *record.Record) jsonRecord {
	out := jsonRecord{PageNumber: rec.Page, TypeID: rec.TypeID, Values: rec.Values}
	for typeID, list := range rec.Children {
		if len(list) == 0 {
			continue
		}
		if out.Children == nil {
			out.Children = map[string][]jsonRecord{}
		}
		for _, child := range list {
			out.Children[typeID] = append(out.Children[typeID], toJSON(child))
		}
	}
	return out
}

func (j *JSON) Write(records iter.Seq2[*record.Record, error]) error {
	return writeArray(j.w, func(yield func(any) bool) error {
		for rec, err := range records {
			if err != nil {
				return err
			}
			if !yield(toJSON(rec)) {
				return nil
			}
		}
		return nil
	})
}

func (j *JSON) Close() error { return nil }

// JSONFlat writes an array of flat row objects keyed by value type id. The
// first object maps each id to its label.
type JSONFlat struct {
	w      io.Writer
	layout *layout
}

func newJSONFlat(w io.Writer, m record.Model) (*JSONFlat, error) {
	l, err := newLayout(m)
	if err != nil {
		return nil, err
	}
	return &JSONFlat{w: w, layout: l}, nil
}

func (j *JSONFlat) Write(records iter.Seq2[*record.Record, error]) error {
	return writeArray(j.w, func(yield func(any) bool) error {
		header := map[string]string{"page": "page"}
		for _, c := range j.layout.cols {
			header[c.valueType] = c.label
		}
		if !yield(header) {
			return nil
		}
		for rec, err := range records {
			if err != nil {
				return err
			}
			for _, row := range j.layout.rows(rec) {
				obj := map[string]string{"page": strconv.Itoa(row.page)}
				for i, id := range row.ids {
					obj[id] = row.values[i]
				}
				if !yield(obj) {
					return nil
				}
			}
		}
		return nil
	})
}

func (j *JSONFlat) Close() error { return nil }

// writeArray writes the values produced by each as an indented JSON array.
func writeArray(w io.Writer, each func(yield func(any) bool) error) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	var (
		n    int
		werr error
	)
	err := each(func(v any) bool {
		b, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			werr = err
			return false
		}
		sep := ",\n  "
		if n == 0 {
			sep = "\n  "
		}
		n++
		if _, err := io.WriteString(w, sep); err != nil {
			werr = err
			return false
		}
		if _, err := w.Write(b); err != nil {
			werr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}
	_, err = io.WriteString(w, "\n]\n")
	return err
}
