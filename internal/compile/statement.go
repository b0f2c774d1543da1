package compile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/query"
)

// Args maps parameter names to values.
type Args map[string]any

// ErrNotStatic is returned by SQL when the text depends on bound values.
var ErrNotStatic = errors.New("statement contains set parameters; use Bind")

// MissingParameterError reports a declared parameter without a value.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing value for parameter %q", e.Name)
}

// Statement is a compiled statement.
type Statement struct {
	kind     query.Kind
	compiler *Compiler

	segments []segment
	params   []query.Param
	sets     map[string]bool

	batch []string
}

func (s *Statement) Kind() query.Kind { return s.kind }

// IsDDL reports whether the statement is a DDL batch.
func (s *Statement) IsDDL() bool { return s.kind == query.KindDDL }

// Params returns the declared parameters in order of first appearance.
func (s *Statement) Params() []query.Param {
	return append([]query.Param(nil), s.params...)
}

// IsSetParam reports whether the named parameter takes a collection.
func (s *Statement) IsSetParam(name string) bool { return s.sets[name] }

// Batch returns the statements of a DDL batch.
func (s *Statement) Batch() []string {
	return append([]string(nil), s.batch...)
}

// SQL returns the statement text with dialect placeholders. DDL batches are
// joined with ";\n".
func (s *Statement) SQL() (string, error) {
	if s.IsDDL() {
		return strings.Join(s.batch, ";\n"), nil
	}
	if len(s.sets) > 0 {
		return "", ErrNotStatic
	}
	b := &binder{stmt: s}
	b.render(s.segments)
	return b.sb.String(), nil
}

// String returns SQL text for display, with set parameters shown as
// unexpanded lists.
func (s *Statement) String() string {
	if text, err := s.SQL(); err == nil {
		return text
	}
	b := &binder{stmt: s, display: true}
	b.render(s.segments)
	return b.sb.String()
}

// Bind renders the statement for the given arguments and returns the SQL
// with its positional arguments. Every declared parameter must be present;
// extra arguments are ignored.
func (s *Statement) Bind(args Args) (string, []any, error) {
	if s.IsDDL() {
		return strings.Join(s.batch, ";\n"), nil, nil
	}
	b := &binder{
		stmt:   s,
		values: make(map[string]any, len(s.params)),
		sets:   make(map[string][]any),
	}
	h := s.compiler.helper
	for _, p := range s.params {
		v, ok := args[p.Name]
		if !ok {
			return "", nil, &MissingParameterError{Name: p.Name}
		}
		if !s.sets[p.Name] {
			cv, err := convert(h.ConvertArg, p.Type, v)
			if err != nil {
				return "", nil, fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			b.values[p.Name] = cv
			continue
		}
		elems, err := toSlice(v)
		if err != nil {
			return "", nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		for i, e := range elems {
			if elems[i], err = convert(h.ConvertArg, p.Type, e); err != nil {
				return "", nil, fmt.Errorf("parameter %q element %d: %w", p.Name, i, err)
			}
		}
		b.sets[p.Name] = elems
	}
	b.render(s.segments)
	return b.sb.String(), b.args, nil
}

// BindPositional binds values in Params order.
func (s *Statement) BindPositional(values ...any) (string, []any, error) {
	if len(values) != len(s.params) {
		return "", nil, fmt.Errorf("expected %d parameter values, got %d", len(s.params), len(values))
	}
	args := make(Args, len(values))
	for i, p := range s.params {
		args[p.Name] = values[i]
	}
	return s.Bind(args)
}

func convert(driverValue func(core.DBType, any) (any, error), t core.DBType, v any) (any, error) {
	if t != core.TypeUnknown {
		var err error
		if v, err = t.Coerce(v); err != nil {
			return nil, err
		}
	}
	return driverValue(t, v)
}

// toSlice accepts any slice or array. nil is the empty set.
func toSlice(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if list, ok := v.([]any); ok {
		return append([]any(nil), list...), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("set parameter needs a slice, got %T", v)
	}
	// []byte is a single value, not a set
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, fmt.Errorf("set parameter needs a slice of values, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// binder numbers placeholders and collects arguments while rendering.
type binder struct {
	stmt    *Statement
	display bool
	values  map[string]any
	sets    map[string][]any

	sb   strings.Builder
	args []any
	n    int
}

func (b *binder) render(segs []segment) {
	for _, sg := range segs {
		switch sg.kind {
		case segText:
			b.sb.WriteString(sg.text)
		case segParam:
			b.placeholder(b.values[sg.param])
		case segValue:
			b.placeholder(sg.value)
		case segSet:
			b.set(sg.set)
		}
	}
}

func (b *binder) placeholder(v any) {
	b.n++
	b.sb.WriteString(b.stmt.compiler.helper.Placeholder(b.n))
	b.args = append(b.args, v)
}

func (b *binder) set(st *setSegment) {
	keyword := " IN ("
	if st.negate {
		keyword = " NOT IN ("
	}
	if b.display {
		b.render(st.left)
		b.sb.WriteString(keyword + ":" + st.param + "...)")
		return
	}

	elems := b.sets[st.param]
	if len(elems) == 0 {
		b.sb.WriteString(emptyIn(st.negate))
		return
	}
	chunks := chunk(elems, b.stmt.compiler.helper.MaxInListSize())
	if len(chunks) > 1 {
		b.sb.WriteString("(")
	}
	for i, values := range chunks {
		if i > 0 {
			b.sb.WriteString(chunkJoin(st.negate))
		}
		b.render(st.left)
		b.sb.WriteString(keyword)
		for j, v := range values {
			if j > 0 {
				b.sb.WriteString(", ")
			}
			b.placeholder(v)
		}
		b.sb.WriteString(")")
	}
	if len(chunks) > 1 {
		b.sb.WriteString(")")
	}
}
