package table

import (
	"maps"
	"slices"

	"github.com/a3tai/textricator/internal/record"
)

// cell holds the values placed in one column of a row, keyed by x.
type cell map[float64][]record.Value

// gridRow has one cell per column.
type gridRow []cell

// grid is a sparse y → row map for one page.
type grid struct {
	cols int
	rows map[float64]gridRow
}

func newGrid(cols int) *grid {
	return &grid{cols: cols, rows: map[float64]gridRow{}}
}

func (g *grid) newRow() gridRow {
	row := make(gridRow, g.cols)
	for i := range row {
		row[i] = cell{}
	}
	return row
}

func (g *grid) put(y float64, col int, x float64, v record.Value) {
	row, ok := g.rows[y]
	if !ok {
		row = g.newRow()
		g.rows[y] = row
	}
	row[col][x] = append(row[col][x], v)
}

// merged returns the rows ordered by y, combining each row with the rows
// following it whose y is within maxRowDistance of the first row of the group.
func (g *grid) merged(maxRowDistance float64) []gridRow {
	ys := slices.Sorted(maps.Keys(g.rows))
	var (
		out   []gridRow
		cur   gridRow
		first float64
	)
	for _, y := range ys {
		if cur != nil && first+maxRowDistance >= y {
			cur.merge(g.rows[y])
			continue
		}
		if cur != nil {
			out = append(out, cur)
		}
		cur, first = g.newRow(), y
		cur.merge(g.rows[y])
	}
	if cur != nil {
		out = append(out, cur)
	}
	return out
}

func (r gridRow) merge(other gridRow) {
	for i, c := range other {
		for x, vs := range c {
			r[i][x] = append(r[i][x], vs...)
		}
	}
}

// values flattens a cell by ascending x.
func (c cell) values() []record.Value {
	var out []record.Value
	for _, x := range slices.Sorted(maps.Keys(c)) {
		out = append(out, c[x]...)
	}
	return out
}
