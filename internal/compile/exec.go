package compile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Execer runs statements without result rows. *sql.DB, *sql.Tx and
// *sql.Conn implement it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer runs statements returning rows.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Preparer creates prepared statements.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Exec binds args and executes the statement. DDL batches run statement by
// statement and stop at the first failure.
func (s *Statement) Exec(ctx context.Context, db Execer, args Args) (sql.Result, error) {
	if s.IsDDL() {
		var res sql.Result
		for i, text := range s.batch {
			start := time.Now()
			r, err := db.ExecContext(ctx, text)
			s.observe(text, start, err)
			if err != nil {
				return nil, fmt.Errorf("statement %d of %d: %w", i+1, len(s.batch), err)
			}
			res = r
		}
		return res, nil
	}
	text, values, err := s.Bind(args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := db.ExecContext(ctx, text, values...)
	s.observe(text, start, err)
	return res, err
}

// Query binds args and runs the statement.
func (s *Statement) Query(ctx context.Context, db Queryer, args Args) (*sql.Rows, error) {
	if s.IsDDL() {
		return nil, fmt.Errorf("cannot query a DDL statement")
	}
	text, values, err := s.Bind(args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := db.QueryContext(ctx, text, values...)
	s.observe(text, start, err)
	return rows, err
}

// QueryRow binds args and runs a statement expected to return one row.
// Binding errors are returned directly, query errors surface on Scan.
func (s *Statement) QueryRow(ctx context.Context, db Queryer, args Args) (*sql.Row, error) {
	if s.IsDDL() {
		return nil, fmt.Errorf("cannot query a DDL statement")
	}
	text, values, err := s.Bind(args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	row := db.QueryRowContext(ctx, text, values...)
	s.observe(text, start, row.Err())
	return row, nil
}

// Prepared is a statement prepared on a connection.
type Prepared struct {
	stmt *Statement
	text string
	ps   *sql.Stmt
}

// Prepare prepares the statement. Only statements without set parameters
// can be prepared since their text depends on the bound values.
func (s *Statement) Prepare(ctx context.Context, db Preparer) (*Prepared, error) {
	if s.IsDDL() {
		return nil, fmt.Errorf("cannot prepare a DDL statement")
	}
	text, err := s.SQL()
	if err != nil {
		return nil, err
	}
	ps, err := db.PrepareContext(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	return &Prepared{stmt: s, text: text, ps: ps}, nil
}

func (p *Prepared) Exec(ctx context.Context, args Args) (sql.Result, error) {
	_, values, err := p.stmt.Bind(args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := p.ps.ExecContext(ctx, values...)
	p.stmt.observe(p.text, start, err)
	return res, err
}

func (p *Prepared) Query(ctx context.Context, args Args) (*sql.Rows, error) {
	_, values, err := p.stmt.Bind(args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := p.ps.QueryContext(ctx, values...)
	p.stmt.observe(p.text, start, err)
	return rows, err
}

func (p *Prepared) Close() error {
	return p.ps.Close()
}

func (s *Statement) observe(text string, start time.Time, err error) {
	c := s.compiler
	elapsed := time.Since(start)
	c.metrics.RecordStatement(string(c.helper.Name()), string(s.kind), elapsed, err)

	entry := c.log.WithFields(logrus.Fields{
		"kind":     s.kind,
		"sql":      text,
		"duration": elapsed,
	})
	if err != nil {
		entry.WithError(err).Debug("statement failed")
		return
	}
	entry.Debug("statement executed")
}
