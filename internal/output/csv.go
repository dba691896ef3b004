package output

import (
	"encoding/csv"
	"io"
	"iter"
	"strconv"

	"github.com/a3tai/textricator/internal/record"
)

// CSV writes one row per root-to-leaf path, led by a page column.
type CSV struct {
	w      *csv.Writer
	layout *layout
}

func newCSV(w io.Writer, m record.Model) (*CSV, error) {
	l, err := newLayout(m)
	if err != nil {
		return nil, err
	}
	return &CSV{w: csv.NewWriter(w), layout: l}, nil
}

func (c *CSV) Write(records iter.Seq2[*record.Record, error]) error {
	if err := c.w.Write(append([]string{"page"}, c.layout.labels()...)); err != nil {
		return err
	}
	for rec, err := range records {
		if err != nil {
			c.w.Flush()
			return err
		}
		for _, row := range c.layout.rows(rec) {
			if err := c.w.Write(append([]string{strconv.Itoa(row.page)}, row.values...)); err != nil {
				return err
			}
		}
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSV) Close() error {
	c.w.Flush()
	return c.w.Error()
}
