package output

import (
	"io"
	"iter"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/textricator/internal/record"
)

// SheetName is the worksheet the XLSX writer fills.
const SheetName = "Records"

// XLSX writes the flattened rows of every record to one worksheet, then the
// workbook to w.
type XLSX struct {
	w      io.Writer
	f      *excelize.File
	layout *layout
}

func newXLSX(w io.Writer, m record.Model) (*XLSX, error) {
	l, err := newLayout(m)
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}
	return &XLSX{w: w, f: f, layout: l}, nil
}

func (x *XLSX) setRow(row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return x.f.SetSheetRow(SheetName, cell, &values)
}

func (x *XLSX) Write(records iter.Seq2[*record.Record, error]) error {
	header := []any{"page"}
	for _, label := range x.layout.labels() {
		header = append(header, label)
	}
	if err := x.setRow(1, header); err != nil {
		return err
	}

	n := 2
	for rec, err := range records {
		if err != nil {
			return err
		}
		for _, row := range x.layout.rows(rec) {
			values := make([]any, 0, len(row.values)+1)
			values = append(values, row.page)
			for _, v := range row.values {
				values = append(values, v)
			}
			if err := x.setRow(n, values); err != nil {
				return err
			}
			n++
		}
	}
	if err := x.f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return x.f.Write(x.w)
}

func (x *XLSX) Close() error { return x.f.Close() }
