package text

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func contents(texts []Text) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = t.Content
	}
	return out
}

func TestGroupRows(t *testing.T) {
	input := []Text{
		{Page: 1, ULX: 50, ULY: 10, Content: "b"},
		{Page: 1, ULX: 10, ULY: 11, Content: "a"},
		{Page: 1, ULX: 30, ULY: 30, Content: "d"},
		{Page: 1, ULX: 5, ULY: 30.5, Content: "c"},
		{Page: 2, ULX: 40, ULY: 30.5, Content: "f"},
		{Page: 2, ULX: 20, ULY: 30.5, Content: "e"},
	}

	tests := []struct {
		name     string
		distance *float64
		want     []string
	}{
		{name: "nil distance is passthrough", distance: nil, want: []string{"b", "a", "d", "c", "f", "e"}},
		{name: "zero distance", distance: ptr(0), want: []string{"b", "a", "d", "c", "e", "f"}},
		{name: "one point", distance: ptr(1), want: []string{"a", "b", "c", "d", "e", "f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(GroupRows(slices.Values(input), tt.distance))
			assert.Equal(t, tt.want, contents(got))
		})
	}
}

func TestGroupRowsIdempotent(t *testing.T) {
	input := []Text{
		{Page: 1, ULX: 50, ULY: 10, Content: "b"},
		{Page: 1, ULX: 10, ULY: 10.5, Content: "a"},
		{Page: 1, ULX: 30, ULY: 20, Content: "c"},
		{Page: 2, ULX: 1, ULY: 5, Content: "d"},
	}
	d := ptr(1)

	once := slices.Collect(GroupRows(slices.Values(input), d))
	twice := slices.Collect(GroupRows(slices.Values(once), d))
	assert.Equal(t, once, twice)
}

func TestGroupRowsStopsEarly(t *testing.T) {
	input := []Text{
		{Page: 1, ULX: 1, ULY: 0, Content: "a"},
		{Page: 1, ULX: 2, ULY: 0, Content: "b"},
		{Page: 1, ULX: 1, ULY: 10, Content: "c"},
	}

	var got []string
	for txt := range GroupRows(slices.Values(input), ptr(0)) {
		got = append(got, txt.Content)
		if len(got) == 1 {
			break
		}
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestGroupRowsPaged(t *testing.T) {
	pages := []Page{
		{Number: 1, Texts: []Text{{Page: 1, ULX: 9, ULY: 0, Content: "y"}, {Page: 1, ULX: 1, ULY: 0, Content: "x"}}},
		{Number: 2, Texts: []Text{{Page: 2, ULX: 1, ULY: 0, Content: "z"}}},
	}

	got := slices.Collect(GroupRowsPaged(slices.Values(pages), ptr(0)))
	if assert.Len(t, got, 2) {
		assert.Equal(t, []string{"x", "y"}, contents(got[0].Texts))
		assert.Equal(t, 2, got[1].Number)
	}
}

func TestTextDimensions(t *testing.T) {
	txt := Text{ULX: 10, ULY: 20, LRX: 15, LRY: 32}
	assert.Equal(t, 5.0, txt.Width())
	assert.Equal(t, 12.0, txt.Height())
}
