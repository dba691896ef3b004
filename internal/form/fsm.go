package form

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/a3tai/textricator/internal/expr"
	"github.com/a3tai/textricator/internal/record"
	"github.com/a3tai/textricator/internal/text"
)

// FSMParser classifies row-grouped text into states. It keeps no state
// between Parse calls.
type FSMParser struct {
	cfg        *Config
	conditions map[string]*expr.Expr
	opts       options
}

// NewFSMParser compiles the conditions of cfg.
func NewFSMParser(cfg *Config, opts ...Option) (*FSMParser, error) {
	if cfg == nil {
		return nil, errors.New("form: nil config")
	}
	env := expr.TypeEnv{Known: builtins, Open: true}
	conditions := make(map[string]*expr.Expr, len(cfg.Conditions))
	for id, src := range cfg.Conditions {
		e, err := expr.Compile(src, env)
		if err != nil {
			return nil, &ConfigError{Kind: "condition", ID: id, Detail: err.Error()}
		}
		conditions[id] = e
	}
	return &FSMParser{cfg: cfg, conditions: conditions, opts: buildOptions(opts)}, nil
}

// Parse classifies seq and yields one StateValue per run of text in a state.
// Skipped states are dropped and neighbouring values of the same state are
// merged. The first error ends the sequence.
func (p *FSMParser) Parse(seq iter.Seq[text.Text]) iter.Seq2[StateValue, error] {
	merged := mergeAdjacent(dropSkipped(p.classify(seq)))
	return func(yield func(StateValue, error) bool) {
		for sv, err := range merged {
			if err == nil {
				p.opts.listener.OnStateValue(sv)
			}
			if !yield(sv, err) {
				return
			}
		}
	}
}

func (p *FSMParser) initialState() string {
	if p.cfg.InitialState == "" {
		return DefaultInitialState
	}
	return p.cfg.InitialState
}

func (p *FSMParser) condition(id string) (*expr.Expr, error) {
	c, ok := p.conditions[id]
	if !ok {
		return nil, &ConfigError{Kind: "condition", ID: id}
	}
	return c, nil
}

func (p *FSMParser) classify(seq iter.Seq[text.Text]) iter.Seq2[StateValue, error] {
	return func(yield func(StateValue, error) bool) {
		r := &fsmRun{p: p, l: p.opts.listener, state: p.initialState(), vars: map[string]string{}}
		for t := range seq {
			sv, err := r.step(t)
			if err != nil {
				yield(StateValue{}, err)
				return
			}
			if sv != nil && !yield(*sv, nil) {
				return
			}
		}
		sv, err := r.flush()
		r.l.OnFSMEnd()
		if err != nil {
			yield(StateValue{}, err)
			return
		}
		if sv != nil {
			yield(*sv, nil)
		}
	}
}

// fsmRun is the state of one Parse call.
type fsmRun struct {
	p      *FSMParser
	l      Listener
	state  string
	buffer []text.Text
	last   *text.Text
	vars   map[string]string
}

func (r *fsmRun) step(t text.Text) (*StateValue, error) {
	if strings.TrimSpace(t.Content) == "" {
		return nil, nil
	}
	r.l.OnText(t)
	if r.outOfBounds(t) {
		return nil, nil
	}

	env := fragmentVars{cur: t, prev: r.last, fsm: r.vars, listener: r.l}

	for _, id := range r.p.cfg.Exclude {
		match, err := r.check(id, env)
		if err != nil {
			return nil, err
		}
		if match {
			r.l.OnExclude(t, id)
			return nil, nil
		}
	}

	var ret *StateValue
	prevPage := 1
	if r.last != nil {
		prevPage = r.last.Page
	}
	if t.Page != prevPage && r.p.cfg.NewPageState != "" {
		sv, err := r.flush()
		if err != nil {
			return nil, err
		}
		ret = sv
		r.state = r.p.cfg.NewPageState
		r.l.OnPageStateChange(t.Page, r.state)
	}

	state, err := r.p.cfg.State(r.state)
	if err != nil {
		return nil, err
	}
	next, err := r.transition(t, state, env)
	if err != nil {
		return nil, err
	}

	if next != r.state {
		sv, err := r.flush()
		if err != nil {
			return nil, err
		}
		if sv != nil {
			if ret != nil {
				return nil, fmt.Errorf("%w: page-transition flush produced unexpected pending text in state %s", ErrInvariant, sv.StateID)
			}
			ret = sv
		}
		if state, err = r.p.cfg.State(next); err != nil {
			return nil, err
		}
		r.state = next
		r.l.OnStateChange(t.Page, next)
	}

	r.buffer = append(r.buffer, t)
	r.setVariables(t, state, env)
	r.last = &t
	return ret, nil
}

func (r *fsmRun) outOfBounds(t text.Text) bool {
	cfg := r.p.cfg
	if top, ok := cfg.Header.For(t.Page); ok && t.LRY <= top {
		r.l.OnHeader(t)
		return true
	}
	if bottom, ok := cfg.Footer.For(t.Page); ok && t.ULY >= bottom {
		r.l.OnFooter(t)
		return true
	}
	if left, ok := cfg.Left.For(t.Page); ok && t.LRX <= left {
		r.l.OnLeftMargin(t)
		return true
	}
	if right, ok := cfg.Right.For(t.Page); ok && t.ULX >= right {
		r.l.OnRightMargin(t)
		return true
	}
	return false
}

func (r *fsmRun) check(id string, env fragmentVars) (bool, error) {
	c, err := r.p.condition(id)
	if err != nil {
		return false, err
	}
	match, err := c.Bool(env)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", id, err)
	}
	r.l.OnCheckCondition(id, c.Source(), match)
	return match, nil
}

func (r *fsmRun) transition(t text.Text, state *State, env fragmentVars) (string, error) {
	for _, tr := range state.Transitions {
		match, err := r.check(tr.Condition, env)
		if err != nil {
			return "", err
		}
		r.l.OnCheckTransition(r.state, tr.Condition, tr.NextState, match, tr.Message)
		if match {
			return tr.NextState, nil
		}
	}
	return "", &DeadEndError{Page: t.Page, Preview: preview(t.Content), State: r.state}
}

func (r *fsmRun) setVariables(t text.Text, state *State, env fragmentVars) {
	for _, set := range state.SetVariables {
		value, ok := env.assignment(set.Value)
		if !ok {
			delete(r.vars, set.Name)
			continue
		}
		r.vars[set.Name] = value
		r.l.OnVariableSet(t, r.state, set.Name, value)
	}
}

// flush turns the buffer into a StateValue, combining fragments whose
// horizontal gap is within the state's combine limit.
func (r *fsmRun) flush() (*StateValue, error) {
	if len(r.buffer) == 0 {
		return nil, nil
	}
	state, err := r.p.cfg.State(r.state)
	if err != nil {
		return nil, err
	}
	limit := r.p.cfg.combineLimit(state)

	var (
		values  []record.Value
		content strings.Builder
		link    string
	)
	for i, t := range r.buffer {
		if i > 0 && !(limit != nil && t.ULX-r.buffer[i-1].LRX <= *limit) {
			values = append(values, record.Value{Text: content.String(), Link: link})
			content.Reset()
			link = ""
		}
		content.WriteString(t.Content)
		switch {
		case t.Link == "":
		case link == "":
			link = t.Link
		case link != t.Link:
			r.l.OnLinkConflict(t, r.state, link, t.Link)
		}
	}
	values = append(values, record.Value{Text: content.String(), Link: link})

	sv := &StateValue{Page: r.buffer[0].Page, StateID: r.state, State: state, Values: values}
	r.buffer = r.buffer[:0:0]
	return sv, nil
}
