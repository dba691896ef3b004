package output

import (
	"encoding/xml"
	"io"
	"iter"
	"maps"
	"slices"
	"strconv"

	"github.com/a3tai/textricator/internal/record"
)

// XML writes <Records> with one <Record> element per record. Values and
// child lists are elements named after their type ids, in sorted order.
type XML struct {
	enc *xml.Encoder
}

func newXML(w io.Writer) *XML {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &XML{enc: enc}
}

func start(name string) xml.StartElement { return xml.StartElement{Name: xml.Name{Local: name}} }

func (x *XML) element(name, value string) error {
	if value == "" {
		return nil
	}
	return x.enc.EncodeElement(value, start(name))
}

func (x *XML) Write(records iter.Seq2[*record.Record, error]) error {
	if err := x.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return err
	}
	if err := x.enc.EncodeToken(start("Records")); err != nil {
		return err
	}
	for rec, err := range records {
		if err != nil {
			return err
		}
		if err := x.record(rec); err != nil {
			return err
		}
	}
	if err := x.enc.EncodeToken(start("Records").End()); err != nil {
		return err
	}
	return x.enc.Flush()
}

func (x *XML) record(rec *record.Record) error {
	if err := x.enc.EncodeToken(start("Record")); err != nil {
		return err
	}
	if err := x.element("pageNumber", strconv.Itoa(rec.Page)); err != nil {
		return err
	}
	if err := x.element("typeId", rec.TypeID); err != nil {
		return err
	}

	if len(rec.Values) > 0 {
		if err := x.enc.EncodeToken(start("values")); err != nil {
			return err
		}
		for _, id := range slices.Sorted(maps.Keys(rec.Values)) {
			v := rec.Values[id]
			if err := x.enc.EncodeToken(start(id)); err != nil {
				return err
			}
			if err := x.element("text", v.Text); err != nil {
				return err
			}
			if err := x.element("link", v.Link); err != nil {
				return err
			}
			if err := x.enc.EncodeToken(start(id).End()); err != nil {
				return err
			}
		}
		if err := x.enc.EncodeToken(start("values").End()); err != nil {
			return err
		}
	}

	if !rec.IsLeaf() {
		if err := x.enc.EncodeToken(start("children")); err != nil {
			return err
		}
		for _, typeID := range slices.Sorted(maps.Keys(rec.Children)) {
			list := rec.Children[typeID]
			if len(list) == 0 {
				continue
			}
			if err := x.enc.EncodeToken(start(typeID)); err != nil {
				return err
			}
			for _, child := range list {
				if err := x.record(child); err != nil {
					return err
				}
			}
			if err := x.enc.EncodeToken(start(typeID).End()); err != nil {
				return err
			}
		}
		if err := x.enc.EncodeToken(start("children").End()); err != nil {
			return err
		}
	}

	return x.enc.EncodeToken(start("Record").End())
}

func (x *XML) Close() error { return x.enc.Flush() }
