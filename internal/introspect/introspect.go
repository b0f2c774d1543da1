// Package introspect reads the schema of a live database back into the
// core model. Each dialect registers an Introspecter; Extractor wraps it with
// table filtering, logging and metrics.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/logging"
	"sqlkit/internal/metrics"
)

// DefaultConcurrency is the number of tables extracted in parallel.
const DefaultConcurrency = 4

// Options restrict and tune an extraction.
type Options struct {
	// Tables limits the extraction to these tables (case-insensitive).
	// Empty means all tables.
	Tables      []string
	Concurrency int
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return o.Concurrency
}

// Wants reports whether the table passes the Tables filter.
func (o Options) Wants(table string) bool {
	if len(o.Tables) == 0 {
		return true
	}
	for _, t := range o.Tables {
		if strings.EqualFold(strings.TrimSpace(t), table) {
			return true
		}
	}
	return false
}

type Introspecter interface {
	Introspect(ctx context.Context, db *sql.DB, opts Options) (*core.Schema, error)
}

var (
	registry = make(map[dialect.Name]func() Introspecter)
	mu       sync.RWMutex
)

func Register(name dialect.Name, fn func() Introspecter) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

func New(name dialect.Name) (Introspecter, error) {
	mu.RLock()
	fn, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no schema extraction for dialect %q", name)
	}

	return fn(), nil
}

// ExtractTables extracts the named tables concurrently and returns them
// sorted by name. Tables rejected by opts are skipped.
func ExtractTables(ctx context.Context, names []string, opts Options, extract func(ctx context.Context, name string) (*core.Table, error)) ([]*core.Table, error) {
	var wanted []string
	for _, n := range names {
		if opts.Wants(n) {
			wanted = append(wanted, n)
		}
	}

	tables := make([]*core.Table, len(wanted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for i, name := range wanted {
		g.Go(func() error {
			t, err := extract(gctx, name)
			if err != nil {
				return fmt.Errorf("table %s: %w", name, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(tables, func(i, j int) bool {
		return strings.ToLower(tables[i].Name) < strings.ToLower(tables[j].Name)
	})
	return tables, nil
}

// NormalizeDefault turns a default expression as reported by a catalog into
// the literal form used by the model: casts, wrapping parentheses and string
// quotes are removed. A NULL default is reported as no default.
func NormalizeDefault(raw string) *string {
	v := strings.TrimSpace(raw)
	for {
		prev := v
		if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") && balanced(v[1:len(v)-1]) {
			v = strings.TrimSpace(v[1 : len(v)-1])
		}
		if i := strings.LastIndex(v, "::"); i > 0 && !strings.ContainsAny(v[i:], "')") {
			v = strings.TrimSpace(v[:i])
		}
		if v == prev {
			break
		}
	}
	if v == "" || strings.EqualFold(v, "NULL") {
		return nil
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	return &v
}

// balanced reports whether s has no unmatched parentheses, so "(a) + (b)"
// is not unwrapped.
func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// Extractor runs the registered Introspecter of a dialect.
type Extractor struct {
	name    dialect.Name
	in      Introspecter
	log     *logrus.Entry
	metrics *metrics.Collector
}

type Option func(*Extractor)

func WithLogger(entry *logrus.Entry) Option {
	return func(e *Extractor) { e.log = entry }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(e *Extractor) { e.metrics = m }
}

// NewExtractor returns an extractor for the dialect.
func NewExtractor(name dialect.Name, opts ...Option) (*Extractor, error) {
	in, err := New(name)
	if err != nil {
		return nil, err
	}
	e := &Extractor{name: name, in: in}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDiscard(e.log, "introspect").WithField("dialect", string(name))
	return e, nil
}

// Extract reads the live schema.
func (e *Extractor) Extract(ctx context.Context, db *sql.DB, opts Options) (*core.Schema, error) {
	start := time.Now()
	s, err := e.in.Introspect(ctx, db, opts)
	tables := 0
	if s != nil {
		tables = len(s.Tables)
	}
	e.metrics.RecordExtraction(string(e.name), tables, time.Since(start), err)
	if err != nil {
		e.log.WithError(err).Error("schema extraction failed")
		return nil, fmt.Errorf("extract %s schema: %w", e.name, err)
	}
	e.log.WithFields(logrus.Fields{
		"schema":   s.Name,
		"tables":   tables,
		"duration": time.Since(start),
	}).Info("schema extracted")
	return s, nil
}

// ReferentialAction parses a catalog foreign key rule. NO ACTION is the
// implicit rule and maps to no action.
func ReferentialAction(rule string) (core.ReferentialAction, error) {
	a, err := core.ParseReferentialAction(rule)
	if err != nil {
		return core.RefActionNone, err
	}
	if a == core.RefActionNoAction {
		return core.RefActionNone, nil
	}
	return a, nil
}
