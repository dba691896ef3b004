package record

import "strings"

// Calculate aggregates the raw values collected for one value type into a
// single Value. A nil ValueType joins the texts with DefaultSeparator.
func Calculate(vt *ValueType, values []Value) (Value, error) {
	if vt == nil {
		return join(values, DefaultSeparator), nil
	}
	return vt.Calculate(values)
}

// Calculate unrepeats (when enabled), joins with the separator, keeps the
// first link found, and applies the first matching replacement.
func (vt *ValueType) Calculate(values []Value) (Value, error) {
	if vt.Unrepeat {
		values = unrepeat(values)
	}
	v := join(values, vt.Sep())

	for i := range vt.Replacements {
		r := &vt.Replacements[i]
		re, err := r.Regexp()
		if err != nil {
			return Value{}, err
		}
		if re.MatchString(v.Text) {
			v.Text = re.ReplaceAllString(v.Text, r.Replacement)
			break
		}
	}
	return v, nil
}

func join(values []Value, sep string) Value {
	var (
		b    strings.Builder
		link string
	)
	for i, v := range values {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(v.Text)
		if link == "" && v.Link != "" {
			link = v.Link
		}
	}
	return Value{Text: b.String(), Link: link}
}

// unrepeat finds the smallest p where values[0:p] equals values[p:2p] and
// recursively unrepeats that prefix. Lists with no such p are unchanged.
func unrepeat(values []Value) []Value {
	for p := 1; 2*p <= len(values); p++ {
		if repeated(values, p) {
			return unrepeat(values[:p])
		}
	}
	return values
}

func repeated(values []Value, p int) bool {
	for i := 0; i < p; i++ {
		if values[i] != values[p+i] {
			return false
		}
	}
	return true
}
