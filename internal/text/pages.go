package text

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PageFilter reports whether a page number should be processed.
type PageFilter func(page int) bool

// AllPages accepts every page.
func AllPages(int) bool { return true }

// ParsePages parses a page specification such as "1,3-5,100-" into a
// PageFilter. An open-ended range ("100-") runs to the last page. A blank
// specification selects all pages.
func ParsePages(spec string) (PageFilter, error) {
	if strings.TrimSpace(spec) == "" {
		return AllPages, nil
	}

	type span struct{ first, last int }
	var spans []span

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid page %q in %q: %w", lo, spec, err)
		}
		last := first
		if isRange {
			hi = strings.TrimSpace(hi)
			if hi == "" {
				last = math.MaxInt
			} else if last, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("invalid page %q in %q: %w", hi, spec, err)
			}
		}
		if last < first {
			return nil, fmt.Errorf("invalid page range %q: end before start", part)
		}
		spans = append(spans, span{first, last})
	}

	return func(page int) bool {
		for _, s := range spans {
			if page >= s.first && page <= s.last {
				return true
			}
		}
		return false
	}, nil
}

// And combines two filters; both must accept the page.
func (f PageFilter) And(other PageFilter) PageFilter {
	return func(page int) bool { return f(page) && other(page) }
}
