package form

import (
	"errors"
	"fmt"
	"iter"

	"github.com/a3tai/textricator/internal/record"
)

// RecordBuilder turns a StateValue stream into record trees, one per root
// record. It keeps no state between Build calls.
type RecordBuilder struct {
	cfg    *Config
	root   string
	owners map[string]string
	routes map[string]map[string]string
	opts   options
}

// NewRecordBuilder prepares the record type routing of cfg.
func NewRecordBuilder(cfg *Config, opts ...Option) (*RecordBuilder, error) {
	if cfg == nil {
		return nil, errors.New("form: nil config")
	}
	root := cfg.RootRecordType
	if root == "" {
		root = DefaultRootRecordType
	}
	if _, ok := cfg.Records[root]; !ok {
		return nil, &ConfigError{Kind: "record type", ID: root, Detail: "root record type is not defined"}
	}
	routes, err := record.Routes(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return &RecordBuilder{
		cfg:    cfg,
		root:   root,
		owners: record.OwnerIndex(cfg),
		routes: routes,
		opts:   buildOptions(opts),
	}, nil
}

// Build consumes seq and yields each root record once it is complete, which
// is when the next root starts or seq ends. The first error ends the sequence.
func (b *RecordBuilder) Build(seq iter.Seq2[StateValue, error]) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		r := &buildRun{b: b, buffer: map[*record.Record]map[string][]record.Value{}}
		for sv, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, u := range b.split(sv) {
				done, err := r.process(u)
				if err != nil {
					yield(nil, err)
					return
				}
				if done != nil && !yield(done, nil) {
					return
				}
			}
		}
		if r.root != nil {
			if err := r.finalize(r.root); err != nil {
				yield(nil, err)
				return
			}
			if !yield(r.root, nil) {
				return
			}
		}
		b.opts.listener.OnRecordsEnd()
	}
}

// unit is a StateValue bound to the one value type it fills.
type unit struct {
	sv        StateValue
	valueType string
}

// split divides sv per value when the state starts a record for each value,
// then per value type. A state without value types fills the value type named
// after itself.
func (b *RecordBuilder) split(sv StateValue) []unit {
	parts := []StateValue{sv}
	if sv.State != nil && sv.State.StartRecordForEachValue && len(sv.Values) > 1 {
		parts = make([]StateValue, 0, len(sv.Values))
		for _, v := range sv.Values {
			part := sv
			part.Values = []record.Value{v}
			parts = append(parts, part)
		}
	}

	valueTypes := []string{sv.StateID}
	if sv.State != nil && len(sv.State.ValueTypes) > 0 {
		valueTypes = sv.State.ValueTypes
	}

	units := make([]unit, 0, len(parts)*len(valueTypes))
	for _, part := range parts {
		for i, vt := range valueTypes {
			u := unit{sv: part, valueType: vt}
			if i > 0 {
				u.sv.SplitContinuation = true
			}
			units = append(units, u)
		}
	}
	return units
}

type stackEntry struct {
	state     string
	newRecord bool
}

// buildRun is the state of one Build call.
type buildRun struct {
	b      *RecordBuilder
	root   *record.Record
	stack  []stackEntry
	buffer map[*record.Record]map[string][]record.Value
}

// process handles one unit and returns the previous root when this unit
// started a new one.
func (r *buildRun) process(u unit) (*record.Record, error) {
	sv := u.sv
	state := sv.State
	if state == nil {
		s, err := r.b.cfg.State(sv.StateID)
		if err != nil {
			return nil, err
		}
		state = s
	}

	newRecord := !sv.SplitContinuation && r.startsRecord(state)
	if newRecord {
		r.popThrough(sv.StateID)
	}
	r.stack = append(r.stack, stackEntry{state: sv.StateID, newRecord: newRecord})

	if !state.Included() {
		return nil, nil
	}

	typeID, ok := r.b.owners[u.valueType]
	if !ok {
		return nil, &ConfigError{Kind: "value type", ID: u.valueType, Detail: "not owned by any record type"}
	}

	var (
		done *record.Record
		rec  *record.Record
		err  error
	)
	switch {
	case newRecord && typeID == r.b.root:
		if r.root != nil {
			if err := r.finalize(r.root); err != nil {
				return nil, err
			}
			done = r.root
			r.buffer = map[*record.Record]map[string][]record.Value{}
		}
		r.root = record.New(sv.Page, typeID)
		rec = r.root
		r.b.opts.listener.OnNewRecord(typeID)
	case newRecord:
		r.ensureRoot(sv.Page)
		parent, err := r.findParent(r.root, typeID)
		if err != nil {
			return nil, err
		}
		rec = record.New(sv.Page, typeID)
		parent.AddChild(rec)
		r.b.opts.listener.OnNewRecord(typeID)
	default:
		r.ensureRoot(sv.Page)
		if rec, err = r.find(r.root, typeID); err != nil {
			return nil, err
		}
		r.b.opts.listener.OnRecordAppend(typeID)
	}

	values := r.buffer[rec]
	if values == nil {
		values = map[string][]record.Value{}
		r.buffer[rec] = values
	}
	values[u.valueType] = append(values[u.valueType], sv.Values...)
	return done, nil
}

// startsRecord applies startRecordForEachValue, then startRecord and, when
// set, the required state check: the required state must have been visited
// since the last record start.
func (r *buildRun) startsRecord(state *State) bool {
	if state.StartRecordForEachValue {
		return true
	}
	if !state.StartRecord {
		return false
	}
	if state.StartRecordRequiredState == "" {
		return true
	}
	for i := len(r.stack) - 1; i >= 0; i-- {
		e := r.stack[i]
		if e.newRecord {
			return false
		}
		if e.state == state.StartRecordRequiredState {
			return true
		}
	}
	return false
}

// popThrough pops the stack down to and including the latest entry where
// stateID started a record. Without such an entry the stack is unchanged.
func (r *buildRun) popThrough(stateID string) {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if e := r.stack[i]; e.newRecord && e.state == stateID {
			r.stack = r.stack[:i]
			return
		}
	}
}

func (r *buildRun) ensureRoot(page int) {
	if r.root == nil {
		r.root = record.New(page, r.b.root)
		r.b.opts.listener.OnNewRecord(r.b.root)
	}
}

// step returns the latest child of rec of the given child type, creating one
// on rec's page when there is none.
func (r *buildRun) step(rec *record.Record, childType string) *record.Record {
	list := rec.Children[childType]
	if len(list) == 0 {
		child := record.New(rec.Page, childType)
		rec.AddChild(child)
		r.b.opts.listener.OnNewRecord(childType)
		return child
	}
	return list[len(list)-1]
}

func (r *buildRun) route(from, to string) (string, error) {
	child, ok := r.b.routes[from][to]
	if !ok {
		return "", &ConfigError{Kind: "record type", ID: to, Detail: fmt.Sprintf("not reachable from %q", from)}
	}
	return child, nil
}

// find returns the latest record of typeID under rec, creating intermediate
// records on the way.
func (r *buildRun) find(rec *record.Record, typeID string) (*record.Record, error) {
	for rec.TypeID != typeID {
		child, err := r.route(rec.TypeID, typeID)
		if err != nil {
			return nil, err
		}
		rec = r.step(rec, child)
	}
	return rec, nil
}

// findParent returns the record under which a new record of typeID belongs.
func (r *buildRun) findParent(rec *record.Record, typeID string) (*record.Record, error) {
	for {
		child, err := r.route(rec.TypeID, typeID)
		if err != nil {
			return nil, err
		}
		if child == typeID {
			return rec, nil
		}
		rec = r.step(rec, child)
	}
}

// finalize computes the values of rec and its descendants from the buffer.
func (r *buildRun) finalize(rec *record.Record) error {
	for vtID, raw := range r.buffer[rec] {
		v, err := record.Calculate(r.b.cfg.Values[vtID], raw)
		if err != nil {
			return fmt.Errorf("value type %q: %w", vtID, err)
		}
		rec.Values[vtID] = v
	}
	for _, list := range rec.Children {
		for _, child := range list {
			if err := r.finalize(child); err != nil {
				return err
			}
		}
	}
	return nil
}
