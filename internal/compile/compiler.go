// Package compile renders query statements for a concrete dialect and binds
// and executes the result.
package compile

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/logging"
	"sqlkit/internal/metrics"
	"sqlkit/internal/query"
)

// Compiler turns query statements into executable statements for one
// dialect. A Compiler is safe for concurrent use.
type Compiler struct {
	helper  dialect.Helper
	log     *logrus.Entry
	metrics *metrics.Collector
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for statement execution.
func WithLogger(entry *logrus.Entry) Option {
	return func(c *Compiler) { c.log = entry }
}

// WithMetrics records compilation and execution in the collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Compiler) { c.metrics = m }
}

// New creates a compiler for the dialect.
func New(h dialect.Helper, opts ...Option) *Compiler {
	c := &Compiler{helper: h}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDiscard(c.log, "compile").WithField("dialect", string(h.Name()))
	return c
}

// Helper returns the dialect the compiler renders for.
func (c *Compiler) Helper() dialect.Helper {
	return c.helper
}

// Compile renders stmt. DML statements keep their parameters symbolic until
// Bind; DDL statements compile to a fixed batch.
func (c *Compiler) Compile(stmt query.Statement) (*Statement, error) {
	if stmt == nil {
		return nil, fmt.Errorf("compile: nil statement")
	}
	out, err := c.compile(stmt)
	c.metrics.RecordCompile(string(c.helper.Name()), string(stmt.Kind()), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Compiler) compile(stmt query.Statement) (*Statement, error) {
	out := &Statement{kind: stmt.Kind(), compiler: c}

	if stmt.Kind() == query.KindDDL {
		batch, err := c.ddl(stmt)
		if err != nil {
			return nil, err
		}
		out.batch = batch
		return out, nil
	}

	params, sets, err := collectParams(stmt)
	if err != nil {
		return nil, err
	}
	out.params = params
	out.sets = sets

	r := &renderer{h: c.helper}
	switch s := stmt.(type) {
	case *query.SelectStmt:
		err = r.selectStmt(s)
	case *query.InsertStmt:
		err = r.insert(s)
	case *query.UpdateStmt:
		err = r.update(s)
	case *query.DeleteStmt:
		err = r.delete(s)
	default:
		err = fmt.Errorf("compile: unsupported statement %T", stmt)
	}
	if err != nil {
		return nil, err
	}
	out.segments = r.segs
	return out, nil
}

// collectParams lists declared parameters in order of first appearance.
// Repeated names collapse; a name declared with two different types, or
// both as scalar and set parameter, is an error.
func collectParams(stmt query.Statement) ([]query.Param, map[string]bool, error) {
	var (
		params []query.Param
		sets   = make(map[string]bool)
		index  = make(map[string]int)
		err    error
	)
	declare := func(name string, t core.DBType, set bool) {
		i, seen := index[name]
		if !seen {
			index[name] = len(params)
			params = append(params, query.Param{Name: name, Type: t})
			if set {
				sets[name] = true
			}
			return
		}
		if sets[name] != set {
			err = fmt.Errorf("compile: parameter %q used both as value and as set", name)
			return
		}
		prev := params[i].Type
		switch {
		case prev == core.TypeUnknown:
			params[i].Type = t
		case t != core.TypeUnknown && t != prev:
			err = fmt.Errorf("compile: parameter %q declared as %s and %s", name, prev, t)
		}
	}
	query.Walk(stmt, func(e query.Expr) bool {
		switch p := e.(type) {
		case *query.Param:
			declare(p.Name, p.Type, false)
		case *query.SetParam:
			declare(p.Name, p.Type, true)
		}
		return err == nil
	})
	if err != nil {
		return nil, nil, err
	}
	return params, sets, nil
}
