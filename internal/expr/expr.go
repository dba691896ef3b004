// Package expr compiles and evaluates the condition language used by FSM
// transitions, exclude rules and record-type filters.
//
// Expressions are written in the expr-lang syntax with two conveniences for
// configuration authors: a single "=" compares for equality and "<>" is an
// alias for "!=".
package expr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// lookupMethod is the env method identifiers are rewritten into.
const lookupMethod = "Lookup"

// Type is the declared type of an expression variable.
type Type int

const (
	String Type = iota
	Integer
	Double
	Boolean
)

// String returns the configuration name of the type.
func (t Type) String() string {
	switch t {
	case Integer:
		return "integer"
	case Double:
		return "double"
	case Boolean:
		return "boolean"
	default:
		return "string"
	}
}

// ParseType maps a configuration type name to a Type. Blank means String.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "string":
		return String, nil
	case "integer", "int", "long":
		return Integer, nil
	case "double", "float", "number":
		return Double, nil
	case "boolean", "bool":
		return Boolean, nil
	}
	return String, fmt.Errorf("unknown data type %q", name)
}

// TypeEnv declares the variables an expression may reference. Types are
// informational; values are checked at evaluation time.
type TypeEnv struct {
	// Known maps variable names to their types.
	Known map[string]Type
	// Open allows references to undeclared variables, which are nil when unset.
	Open bool
}

// Vars supplies variable values at evaluation time.
type Vars interface {
	Var(name string) (any, bool)
}

// MapVars adapts a plain map to Vars.
type MapVars map[string]any

// Var implements Vars.
func (m MapVars) Var(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Expr is a compiled expression.
type Expr struct {
	source  string
	program *vm.Program
}

// lookupEnv is the runtime environment of every program. Each identifier is
// compiled into a Lookup call, so a variable is only fetched when the
// evaluation reaches it.
type lookupEnv struct {
	vars Vars
}

// Lookup returns the value of the variable name, or nil when it is unset.
func (e lookupEnv) Lookup(name string) any {
	if v, ok := e.vars.Var(name); ok {
		return v
	}
	return nil
}

type lookupPatcher struct{}

func (lookupPatcher) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	*node = &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: lookupMethod},
		Arguments: []ast.Node{&ast.StringNode{Value: id.Value}},
	}
}

// Compile parses src and checks its variables against env.
func Compile(src string, env TypeEnv) (*Expr, error) {
	rewritten := rewrite(src)

	tree, err := parser.Parse(rewritten)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	idents := collectIdents(&tree.Node)

	if !env.Open {
		for _, name := range idents {
			if _, ok := env.Known[name]; !ok {
				return nil, fmt.Errorf("compile %q: unknown variable %q", src, name)
			}
		}
	}

	program, err := expr.Compile(rewritten, expr.Env(lookupEnv{}), expr.Patch(lookupPatcher{}))
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}

	return &Expr{source: src, program: program}, nil
}

// Source returns the expression text as written.
func (e *Expr) Source() string { return e.source }

// Eval evaluates the expression. A variable is requested from vars only when
// evaluation reaches it, so operands skipped by "and"/"or" are never looked
// up. Missing variables evaluate to nil.
func (e *Expr) Eval(vars Vars) (any, error) {
	out, err := expr.Run(e.program, lookupEnv{vars: vars})
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", e.source, err)
	}
	return out, nil
}

// Bool evaluates the expression and requires a boolean result.
func (e *Expr) Bool(vars Vars) (bool, error) {
	out, err := e.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: result %v (%T) is not boolean", e.source, out, out)
	}
	return b, nil
}

// Convert parses s as a value of type t. It returns nil when s is empty or
// cannot be parsed.
func Convert(s string, t Type) any {
	if s == "" && t != String {
		return nil
	}
	switch t {
	case Integer:
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
		return nil
	case Double:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
		return nil
	case Boolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
		return nil
	default:
		return s
	}
}

type identCollector struct {
	seen map[string]bool
}

func (c *identCollector) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		c.seen[id.Value] = true
	}
}

func collectIdents(root *ast.Node) []string {
	c := &identCollector{seen: map[string]bool{}}
	ast.Walk(root, c)
	names := make([]string, 0, len(c.seen))
	for name := range c.seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rewrite turns a lone "=" into "==" and "<>" into "!=", leaving string
// literals untouched.
func rewrite(src string) string {
	var b strings.Builder
	b.Grow(len(src) + 8)

	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
			b.WriteByte(c)
		case '<':
			if i+1 < len(src) && src[i+1] == '>' {
				b.WriteString("!=")
				i++
			} else {
				b.WriteByte(c)
			}
		case '=':
			prev := byte(0)
			if i > 0 {
				prev = src[i-1]
			}
			next := byte(0)
			if i+1 < len(src) {
				next = src[i+1]
			}
			switch {
			case next == '=':
				b.WriteString("==")
				i++
			case prev == '!' || prev == '<' || prev == '>' || prev == '=':
				b.WriteByte(c)
			default:
				b.WriteString("==")
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
