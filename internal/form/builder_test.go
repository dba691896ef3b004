package form

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/textricator/internal/record"
)

const courtConfig = `
rootRecordType: case
recordTypes:
  case:
    label: Case
    valueTypes: [caseNumber]
    children: [defendant]
  defendant:
    label: Defendant
    valueTypes: [name]
    children: [charge]
  charge:
    label: Charge
    valueTypes: [chargeDesc]
valueTypes:
  caseNumber: {label: Case Number}
  name: {label: Name}
  chargeDesc: {label: Charge}
conditions:
  any: "true"
  isCase: 'text == "Case"'
  isDefendant: 'text == "Defendant"'
  isCharge: 'text == "Charge"'
states:
  INITIAL:
    transitions: [{isCase: caseLabel}]
  caseLabel:
    include: false
    transitions: [{any: caseNumber}]
  caseNumber:
    startRecord: true
    transitions: [{isDefendant: defendantLabel}, {isCase: caseLabel}]
  defendantLabel:
    include: false
    transitions: [{any: name}]
  name:
    startRecord: true
    transitions: [{isCharge: chargeLabel}, {isDefendant: defendantLabel}, {isCase: caseLabel}]
  chargeLabel:
    include: false
    transitions: [{any: charge}]
  charge:
    startRecord: true
    valueTypes: [chargeDesc]
    transitions: [{isCharge: chargeLabel}, {isDefendant: defendantLabel}, {isCase: caseLabel}]
`

var courtText = lines(
	"Case", "C-1",
	"Defendant", "Fred",
	"Charge", "Theft",
	"Charge", "Assault",
	"Defendant", "Sally",
	"Charge", "Fraud",
	"Case", "C-2",
	"Defendant", "Bob",
)

func buildAll(t *testing.T, cfg *Config, svs []StateValue, opts ...Option) ([]*record.Record, error) {
	t.Helper()
	b, err := NewRecordBuilder(cfg, opts...)
	require.NoError(t, err)
	seq := func(yield func(StateValue, error) bool) {
		for _, sv := range svs {
			if !yield(sv, nil) {
				return
			}
		}
	}
	return collect(b.Build(seq))
}

func parseRecords(t *testing.T, cfg *Config) []*record.Record {
	t.Helper()
	p, err := NewFSMParser(cfg)
	require.NoError(t, err)
	b, err := NewRecordBuilder(cfg)
	require.NoError(t, err)
	recs, err := collect(b.Build(p.Parse(slices.Values(courtText))))
	require.NoError(t, err)
	return recs
}

func withValue(rec *record.Record, vt, text string) *record.Record {
	rec.Values[vt] = record.Value{Text: text}
	return rec
}

func TestRecordBuilderCourt(t *testing.T) {
	recs := parseRecords(t, mustParse(t, courtConfig))
	require.Len(t, recs, 2)

	fred := withValue(record.New(1, "defendant"), "name", "Fred")
	fred.AddChild(withValue(record.New(1, "charge"), "chargeDesc", "Theft"))
	fred.AddChild(withValue(record.New(1, "charge"), "chargeDesc", "Assault"))
	sally := withValue(record.New(1, "defendant"), "name", "Sally")
	sally.AddChild(withValue(record.New(1, "charge"), "chargeDesc", "Fraud"))
	first := withValue(record.New(1, "case"), "caseNumber", "C-1")
	first.AddChild(fred)
	first.AddChild(sally)

	second := withValue(record.New(1, "case"), "caseNumber", "C-2")
	second.AddChild(withValue(record.New(1, "defendant"), "name", "Bob"))

	assert.True(t, first.Equal(recs[0]), "first case: %+v", recs[0])
	assert.True(t, second.Equal(recs[1]), "second case: %+v", recs[1])
}

func TestRecordBuilderDeterministic(t *testing.T) {
	cfg := mustParse(t, courtConfig)
	a := parseRecords(t, cfg)
	b := parseRecords(t, cfg)
	require.Len(t, b, len(a))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]))
	}
}

func TestRecordBuilderContainment(t *testing.T) {
	cfg := mustParse(t, courtConfig)
	routes, err := record.Routes(cfg)
	require.NoError(t, err)
	owners := record.OwnerIndex(cfg)

	var check func(rec *record.Record)
	check = func(rec *record.Record) {
		if rec.TypeID != cfg.RootType() {
			_, ok := routes[cfg.RootType()][rec.TypeID]
			assert.True(t, ok, "type %s unreachable from root", rec.TypeID)
		}
		for vt := range rec.Values {
			assert.Equal(t, rec.TypeID, owners[vt], "value type %s on %s", vt, rec.TypeID)
		}
		for typeID, list := range rec.Children {
			assert.Contains(t, cfg.RecordTypes()[rec.TypeID].Children, typeID)
			for _, child := range list {
				check(child)
			}
		}
	}
	for _, rec := range parseRecords(t, cfg) {
		assert.Equal(t, cfg.RootType(), rec.TypeID)
		check(rec)
	}
}

const personConfig = `
rootRecordType: person
recordTypes:
  person:
    valueTypes: [name]
states:
  name:
    startRecord: true
    startRecordRequiredState: label
  label:
    include: false
`

func sv(cfg *Config, state string, values ...string) StateValue {
	out := StateValue{Page: 1, StateID: state, State: cfg.States[state]}
	for _, v := range values {
		out.Values = append(out.Values, record.Value{Text: v})
	}
	return out
}

func TestRecordBuilderRequiredState(t *testing.T) {
	cfg := mustParse(t, personConfig)

	recs, err := buildAll(t, cfg, []StateValue{
		sv(cfg, "name", "Fred"),
		sv(cfg, "label", "x"),
		sv(cfg, "name", "Sally"),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]string{"name": "Fred"}, recordValues(recs[0]))
	assert.Equal(t, map[string]string{"name": "Sally"}, recordValues(recs[1]))
}

func TestRecordBuilderRequiredStateMissing(t *testing.T) {
	cfg := mustParse(t, personConfig)

	recs, err := buildAll(t, cfg, []StateValue{
		sv(cfg, "name", "Fred"),
		sv(cfg, "name", "Sally"),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]string{"name": "Fred Sally"}, recordValues(recs[0]))
}

func TestRecordBuilderValueTypeSplit(t *testing.T) {
	cfg := mustParse(t, `
rootRecordType: address
recordTypes:
  address:
    valueTypes: [street, city, state]
valueTypes:
  city:
    replacements:
      - {pattern: '^(.*), (\w\w)$', replacement: '$1'}
  state:
    replacements:
      - {pattern: '^(.*), (\w\w)$', replacement: '$2'}
states:
  street:
    startRecord: true
  cityState:
    valueTypes: [city, state]
`)
	rec := &recorder{}
	recs, err := buildAll(t, cfg, []StateValue{
		sv(cfg, "street", "1 Main St"),
		sv(cfg, "cityState", "Springfield, IL"),
		sv(cfg, "street", "2 Elm St"),
		sv(cfg, "cityState", "Shelbyville, KY"),
	}, WithListener(rec))
	require.NoError(t, err)
	assert.Equal(t, []string{"new:address", "new:address"}, rec.events)

	require.Len(t, recs, 2)
	assert.Equal(t, map[string]string{"street": "1 Main St", "city": "Springfield", "state": "IL"}, recordValues(recs[0]))
	assert.Equal(t, map[string]string{"street": "2 Elm St", "city": "Shelbyville", "state": "KY"}, recordValues(recs[1]))
}

func TestRecordBuilderStartRecordForEachValue(t *testing.T) {
	cfg := mustParse(t, `
rootRecordType: item
recordTypes:
  item:
    valueTypes: [item]
states:
  item:
    startRecord: true
    startRecordForEachValue: true
`)
	recs, err := buildAll(t, cfg, []StateValue{sv(cfg, "item", "a", "b", "c")})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, map[string]string{"item": want}, recordValues(recs[i]))
	}
}

func TestRecordBuilderStartRecordForEachValueAlone(t *testing.T) {
	cfg := mustParse(t, `
rootRecordType: item
recordTypes:
  item:
    valueTypes: [item]
states:
  item:
    startRecordForEachValue: true
`)
	recs, err := buildAll(t, cfg, []StateValue{sv(cfg, "item", "a", "b", "c")})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, map[string]string{"item": want}, recordValues(recs[i]))
	}
}

func TestRecordBuilderRequiredStateThatStartedRecord(t *testing.T) {
	cfg := mustParse(t, `
rootRecordType: person
recordTypes:
  person:
    valueTypes: [name]
    children: [heading]
  heading:
    valueTypes: [header]
states:
  name:
    startRecord: true
    startRecordRequiredState: header
  header:
    startRecord: true
`)
	recs, err := buildAll(t, cfg, []StateValue{
		sv(cfg, "name", "Fred"),
		sv(cfg, "header", "H1"),
		sv(cfg, "name", "Sally"),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]string{"name": "Fred Sally"}, recordValues(recs[0]))
	require.Len(t, recs[0].Children["heading"], 1)
	assert.Equal(t, "H1", recs[0].Children["heading"][0].Values["header"].Text)
}

func TestRecordBuilderIntermediatePage(t *testing.T) {
	cfg := mustParse(t, `
rootRecordType: a
recordTypes:
  a: {valueTypes: [title], children: [b]}
  b: {children: [c]}
  c: {valueTypes: [leaf]}
states:
  title: {}
  leaf: {startRecord: true}
`)
	leaf := sv(cfg, "leaf", "x")
	leaf.Page = 3
	recs, err := buildAll(t, cfg, []StateValue{sv(cfg, "title", "T"), leaf})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	root := recs[0]
	assert.Equal(t, 1, root.Page)
	require.Len(t, root.Children["b"], 1)
	b := root.Children["b"][0]
	assert.Equal(t, 1, b.Page)
	require.Len(t, b.Children["c"], 1)
	assert.Equal(t, 3, b.Children["c"][0].Page)
}

func TestRecordBuilderCreatesIntermediateRecords(t *testing.T) {
	cfg := mustParse(t, `
rootRecordType: a
recordTypes:
  a: {children: [b]}
  b: {children: [c]}
  c: {valueTypes: [leaf]}
states:
  leaf: {}
`)
	recs, err := buildAll(t, cfg, []StateValue{sv(cfg, "leaf", "x"), sv(cfg, "leaf", "y")})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	root := recs[0]
	require.Len(t, root.Children["b"], 1)
	b := root.Children["b"][0]
	require.Len(t, b.Children["c"], 1)
	assert.Equal(t, "x y", b.Children["c"][0].Values["leaf"].Text)
}

func TestRecordBuilderConfigErrors(t *testing.T) {
	t.Run("value type without owner", func(t *testing.T) {
		cfg := mustParse(t, `
recordTypes:
  root: {valueTypes: [a]}
states:
  orphan: {}
`)
		_, err := buildAll(t, cfg, []StateValue{sv(cfg, "orphan", "x")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("record type unreachable from root", func(t *testing.T) {
		cfg := mustParse(t, `
recordTypes:
  root: {valueTypes: [a]}
  island: {valueTypes: [b]}
states:
  b: {}
`)
		_, err := buildAll(t, cfg, []StateValue{sv(cfg, "b", "x")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("missing root type", func(t *testing.T) {
		cfg := mustParse(t, `
rootRecordType: nope
recordTypes:
  root: {}
`)
		_, err := NewRecordBuilder(cfg)
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("missing child type", func(t *testing.T) {
		cfg := mustParse(t, `
recordTypes:
  root: {children: [ghost]}
`)
		_, err := NewRecordBuilder(cfg)
		assert.True(t, errors.Is(err, ErrConfig))
	})
}

func TestRecordBuilderPropagatesUpstreamError(t *testing.T) {
	cfg := mustParse(t, personConfig)
	b, err := NewRecordBuilder(cfg)
	require.NoError(t, err)

	boom := errors.New("boom")
	seq := func(yield func(StateValue, error) bool) {
		if !yield(sv(cfg, "name", "Fred"), nil) {
			return
		}
		yield(StateValue{}, boom)
	}
	recs, err := collect(b.Build(seq))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, recs)
}
