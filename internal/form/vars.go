package form

import (
	"strconv"
	"strings"

	"github.com/a3tai/textricator/internal/expr"
	"github.com/a3tai/textricator/internal/text"
)

// builtins are the variables every condition may reference.
var builtins = map[string]expr.Type{
	"ulx":       expr.Double,
	"uly":       expr.Double,
	"lrx":       expr.Double,
	"lry":       expr.Double,
	"width":     expr.Double,
	"height":    expr.Double,
	"text":      expr.String,
	"page":      expr.Integer,
	"page_prev": expr.Integer,
	"fontSize":  expr.Double,
	"font":      expr.String,
	"color":     expr.String,
	"bgcolor":   expr.String,
	"ulx_rel":   expr.Double,
	"uly_rel":   expr.Double,
	"lrx_rel":   expr.Double,
	"lry_rel":   expr.Double,
}

// fragmentVars resolves variables for one fragment. prev is the last
// accepted fragment, nil at the start of the document.
type fragmentVars struct {
	cur      text.Text
	prev     *text.Text
	fsm      map[string]string
	listener Listener
}

func (v fragmentVars) Var(name string) (any, bool) {
	t := v.cur
	switch name {
	case "ulx":
		return t.ULX, true
	case "uly":
		return t.ULY, true
	case "lrx":
		return t.LRX, true
	case "lry":
		return t.LRY, true
	case "width":
		return t.Width(), true
	case "height":
		return t.Height(), true
	case "text":
		return t.Content, true
	case "page":
		return t.Page, true
	case "fontSize":
		return t.FontSize, true
	case "font":
		return t.Font, true
	case "color":
		return t.Color, true
	case "bgcolor":
		return t.BgColor, true
	case "page_prev":
		if v.prev == nil {
			v.listener.OnNoPrevious(name)
			return -1, true
		}
		return v.prev.Page, true
	case "ulx_rel":
		return v.rel(name, t.ULX, func(p *text.Text) float64 { return p.ULX }), true
	case "uly_rel":
		return v.rel(name, t.ULY, func(p *text.Text) float64 { return p.ULY }), true
	case "lrx_rel":
		return v.rel(name, t.LRX, func(p *text.Text) float64 { return p.LRX }), true
	case "lry_rel":
		return v.rel(name, t.LRY, func(p *text.Text) float64 { return p.LRY }), true
	}
	s, ok := v.fsm[name]
	return s, ok
}

func (v fragmentVars) rel(name string, cur float64, of func(*text.Text) float64) float64 {
	if v.prev == nil {
		v.listener.OnNoPrevious(name)
		return cur
	}
	return cur - of(v.prev)
}

// assignment resolves a VariableSet value: "{name}" copies a variable,
// anything else is literal. ok is false when the copied variable is unset.
func (v fragmentVars) assignment(value string) (string, bool) {
	if len(value) < 2 || !strings.HasPrefix(value, "{") || !strings.HasSuffix(value, "}") {
		return value, true
	}
	got, ok := v.Var(value[1 : len(value)-1])
	if !ok || got == nil {
		return "", false
	}
	switch x := got.(type) {
	case string:
		return x, true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}
