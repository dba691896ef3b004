package text

import (
	"iter"
	"slices"
	"sort"
)

// GroupRows reorders a text sequence into rows. Consecutive fragments on the
// same page whose upper y does not exceed the previous fragment's upper y by
// more than maxRowDistance form one row, and each row is emitted sorted
// left-to-right by upper x.
//
// A nil maxRowDistance disables grouping and the sequence is returned as-is.
func GroupRows(seq iter.Seq[Text], maxRowDistance *float64) iter.Seq[Text] {
	if maxRowDistance == nil {
		return seq
	}
	limit := *maxRowDistance

	return func(yield func(Text) bool) {
		var buf []Text
		lastPage := 0

		flush := func() bool {
			row := buf
			buf = nil
			sortRow(row)
			for _, t := range row {
				if !yield(t) {
					return false
				}
			}
			return true
		}

		for t := range seq {
			if len(buf) > 0 {
				last := buf[len(buf)-1]
				if t.Page != lastPage || t.ULY-last.ULY > limit {
					if !flush() {
						return
					}
				}
			}
			buf = append(buf, t)
			lastPage = t.Page
		}
		flush()
	}
}

// GroupRowsPaged applies GroupRows to the texts of each page independently.
func GroupRowsPaged(pages iter.Seq[Page], maxRowDistance *float64) iter.Seq[Page] {
	if maxRowDistance == nil {
		return pages
	}
	return func(yield func(Page) bool) {
		for p := range pages {
			grouped := slices.Collect(GroupRows(slices.Values(p.Texts), maxRowDistance))
			if !yield(Page{Number: p.Number, Texts: grouped}) {
				return
			}
		}
	}
}

func sortRow(row []Text) {
	sort.SliceStable(row, func(i, j int) bool { return row[i].ULX < row[j].ULX })
}
