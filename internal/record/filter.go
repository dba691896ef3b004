package record

import (
	"fmt"
	"iter"
	"slices"

	"github.com/a3tai/textricator/internal/expr"
)

// Filter prunes records whose record type filter evaluates false.
type Filter struct {
	exprs      map[string]*expr.Expr
	valueTypes map[string]expr.Type
}

// NewFilter compiles the filter of every record type in m. A filter may only
// reference the value types its own record type owns.
func NewFilter(m Model) (*Filter, error) {
	f := &Filter{
		exprs:      map[string]*expr.Expr{},
		valueTypes: map[string]expr.Type{},
	}

	for id, vt := range m.ValueTypes() {
		if vt == nil {
			continue
		}
		t, err := expr.ParseType(vt.Type)
		if err != nil {
			return nil, fmt.Errorf("value type %q: %w", id, err)
		}
		f.valueTypes[id] = t
	}

	for typeID, rt := range m.RecordTypes() {
		if rt.Filter == "" {
			continue
		}
		env := expr.TypeEnv{Known: make(map[string]expr.Type, len(rt.ValueTypes))}
		for _, vt := range rt.ValueTypes {
			env.Known[vt] = f.valueTypes[vt]
		}
		e, err := expr.Compile(rt.Filter, env)
		if err != nil {
			return nil, fmt.Errorf("record type %q filter: %w", typeID, err)
		}
		f.exprs[typeID] = e
	}
	return f, nil
}

// Filter applies Apply to every record of seq, dropping rejected roots.
func (f *Filter) Filter(seq iter.Seq2[*Record, error]) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for rec, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			ok, err := f.Apply(rec)
			if err != nil {
				yield(nil, err)
				return
			}
			if ok && !yield(rec, nil) {
				return
			}
		}
	}
}

// Apply reports whether rec passes its type's filter. When it does, every
// child list is filtered in place, recursively.
func (f *Filter) Apply(rec *Record) (bool, error) {
	ok, err := f.Accept(rec)
	if err != nil || !ok {
		return false, err
	}
	return true, f.filterChildren(rec)
}

// Accept evaluates the filter of rec's type against rec's own values only.
// Records whose type has no filter are accepted.
func (f *Filter) Accept(rec *Record) (bool, error) {
	e, ok := f.exprs[rec.TypeID]
	if !ok {
		return true, nil
	}
	ok, err := e.Bool(recordVars{rec: rec, types: f.valueTypes})
	if err != nil {
		return false, fmt.Errorf("record type %q filter: %w", rec.TypeID, err)
	}
	return ok, nil
}

func (f *Filter) filterChildren(rec *Record) error {
	for typeID, children := range rec.Children {
		var ferr error
		kept := slices.DeleteFunc(children, func(child *Record) bool {
			if ferr != nil {
				return false
			}
			ok, err := f.Accept(child)
			if err != nil {
				ferr = err
			}
			return !ok
		})
		if ferr != nil {
			return ferr
		}
		rec.Children[typeID] = kept
		for _, child := range kept {
			if err := f.filterChildren(child); err != nil {
				return err
			}
		}
	}
	return nil
}

type recordVars struct {
	rec   *Record
	types map[string]expr.Type
}

func (v recordVars) Var(name string) (any, bool) {
	val, ok := v.rec.Values[name]
	if !ok {
		return nil, false
	}
	return expr.Convert(val.Text, v.types[name]), true
}
