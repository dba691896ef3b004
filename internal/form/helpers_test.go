package form

import (
	"fmt"
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a3tai/textricator/internal/record"
	"github.com/a3tai/textricator/internal/text"
)

func mustParse(t *testing.T, yml string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)
	return cfg
}

// frag returns a fragment 10 points wide and high.
func frag(page int, x, y float64, content string) text.Text {
	return text.Text{Page: page, ULX: x, ULY: y, LRX: x + 10, LRY: y + 10, Content: content}
}

// lines returns one fragment per row on page 1.
func lines(contents ...string) []text.Text {
	out := make([]text.Text, len(contents))
	for i, c := range contents {
		out[i] = frag(1, 100, float64(100+20*i), c)
	}
	return out
}

func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func texts(sv StateValue) []string {
	out := make([]string, len(sv.Values))
	for i, v := range sv.Values {
		out[i] = v.Text
	}
	return out
}

func summary(svs []StateValue) []string {
	out := make([]string, len(svs))
	for i, sv := range svs {
		out[i] = fmt.Sprintf("%s%v", sv.StateID, texts(sv))
	}
	return out
}

func parseAll(t *testing.T, cfg *Config, in []text.Text, opts ...Option) ([]StateValue, error) {
	t.Helper()
	p, err := NewFSMParser(cfg, opts...)
	require.NoError(t, err)
	return collect(p.Parse(slices.Values(in)))
}

// recorder captures a subset of listener events.
type recorder struct {
	NopListener
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) OnHeader(t text.Text)      { r.add("header:%s", t.Content) }
func (r *recorder) OnFooter(t text.Text)      { r.add("footer:%s", t.Content) }
func (r *recorder) OnLeftMargin(t text.Text)  { r.add("left:%s", t.Content) }
func (r *recorder) OnRightMargin(t text.Text) { r.add("right:%s", t.Content) }
func (r *recorder) OnExclude(t text.Text, condition string) {
	r.add("exclude:%s:%s", condition, t.Content)
}
func (r *recorder) OnNoPrevious(variable string) { r.add("noprev:%s", variable) }
func (r *recorder) OnPageStateChange(page int, state string) {
	r.add("page:%d:%s", page, state)
}
func (r *recorder) OnLinkConflict(t text.Text, state, kept, dropped string) {
	r.add("link:%s:%s:%s", state, kept, dropped)
}
func (r *recorder) OnNewRecord(typeID string) { r.add("new:%s", typeID) }

func (r *recorder) has(event string) bool { return slices.Contains(r.events, event) }

func recordValues(rec *record.Record) map[string]string {
	out := map[string]string{}
	for k, v := range rec.Values {
		out[k] = v.Text
	}
	return out
}
