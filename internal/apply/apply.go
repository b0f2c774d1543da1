// Package apply executes migration statements against a live database.
// Statements are analyzed before execution so that destructive or
// non-transactional changes are reported and only run when explicitly
// allowed.
package apply

import (
	"bufio"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"ariga.io/atlas/sql/migrate"
	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/sirupsen/logrus"

	"sqlkit/internal/dialect"
	"sqlkit/internal/logging"
	"sqlkit/internal/metrics"
)

// DefaultConnectRetries is the number of extra ping attempts made while
// the database is not reachable yet.
const DefaultConnectRetries = 3

// ErrAborted is returned when the user declines the confirmation prompt.
var ErrAborted = errors.New("migration aborted by user")

// PreflightResult contains a list of warnings, errors, and transactionality info about migration.
type PreflightResult struct {
	Warnings        []Warning
	Errors          []string
	IsTransactional bool
	NonTxReasons    []string
}

// HasDestructiveOperations reports whether any warning is at danger level.
func (p *PreflightResult) HasDestructiveOperations() bool {
	for _, w := range p.Warnings {
		if w.Level == WarnDanger {
			return true
		}
	}
	return false
}

// Warning contains a Level of a warning, message, and actual SQL from migration.
type Warning struct {
	Level   WarningLevel
	Message string
	SQL     string
}

// WarningLevel grades a preflight warning.
type WarningLevel string

const (
	WarnCaution WarningLevel = "CAUTION"
	WarnDanger  WarningLevel = "DANGER"
)

// Options are the user settings of one apply run.
type Options struct {
	DSN                   string
	DryRun                bool
	Transaction           bool
	AllowNonTransactional bool
	Unsafe                bool
	SkipConfirmation      bool
	// ConnectRetries bounds the ping retries of Connect. Zero means
	// DefaultConnectRetries, a negative value disables retrying.
	ConnectRetries int
	Out            io.Writer
	In             io.Reader
}

// jsonMigration is the payload written by the json migration formatter.
type jsonMigration struct {
	Format  string   `json:"format"`
	SQL     []string `json:"sql,omitempty"`
	Summary struct {
		SQLStatements int `json:"sqlStatements"`
	} `json:"summary"`
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the log entry used for progress and failures.
func WithLogger(entry *logrus.Entry) Option {
	return func(a *Applier) { a.log = entry }
}

// WithMetrics records statement and run metrics on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Applier) { a.metrics = m }
}

// Applier runs a list of statements against one database.
type Applier struct {
	helper     dialect.Helper
	db         *sql.DB
	ownsDB     bool
	statements []string
	options    Options
	analyzer   *StatementAnalyzer
	out        io.Writer
	in         io.Reader
	log        *logrus.Entry
	metrics    *metrics.Collector
}

// NewApplier returns an Applier for the dialect of h.
func NewApplier(h dialect.Helper, options Options, opts ...Option) *Applier {
	a := &Applier{
		helper:   h,
		options:  options,
		analyzer: NewStatementAnalyzer(h),
		out:      options.Out,
		in:       options.In,
	}
	if a.out == nil {
		a.out = io.Discard
	}
	if a.in == nil {
		a.in = os.Stdin
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrDiscard(a.log, "apply").WithField("dialect", h.Name())
	return a
}

func (a *Applier) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *Applier) println(args ...any) {
	_, _ = fmt.Fprintln(a.out, args...)
}

func (a *Applier) colorf(attr color.Attribute, format string, args ...any) {
	_, _ = color.New(attr).Fprintf(a.out, format, args...)
}

// Connect opens the database named by the DSN and pings it, retrying with
// exponential backoff while the server is not reachable.
func (a *Applier) Connect(ctx context.Context) error {
	db, err := sql.Open(a.helper.DriverName(), a.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	retries := a.options.ConnectRetries
	if retries == 0 {
		retries = DefaultConnectRetries
	}
	if retries < 0 {
		retries = 0
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	pingErr := backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		a.log.WithError(err).Debug("database not reachable, retrying")
		return err
	}, b)
	if pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf("failed to ping database: %v; additionally failed to close connection: %w", pingErr, closeErr)
		}
		return fmt.Errorf("failed to ping database: %w", pingErr)
	}

	a.db = db
	a.ownsDB = true
	a.log.Debug("connected")
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// UseDB attaches an already open pool. The pool is not closed by Close.
func (a *Applier) UseDB(db *sql.DB) {
	a.db = db
	a.ownsDB = false
}

// DB returns the attached pool, nil before Connect or UseDB.
func (a *Applier) DB() *sql.DB {
	return a.db
}

// Close closes the pool opened by Connect.
func (a *Applier) Close() error {
	if a.db != nil && a.ownsDB {
		return a.db.Close()
	}
	return nil
}

// ParseStatements splits migration content into statements. The content is
// either the json migration payload or plain SQL.
func (a *Applier) ParseStatements(content string) []string {
	content = strings.TrimSpace(content)

	var m jsonMigration
	if err := json.Unmarshal([]byte(content), &m); err == nil && m.Format == "json" {
		if stmts := nonEmpty(m.SQL); len(stmts) > 0 {
			a.statements = stmts
			return stmts
		}
	}

	var stmts []string
	if a.analyzer.parser != nil {
		stmts = a.splitWithParser(content)
	} else {
		stmts = splitWithLexer(content)
	}
	if len(stmts) == 0 {
		stmts = splitStatementsBySemicolon(content)
	}
	a.statements = stmts
	return stmts
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitWithParser restores every statement from the TiDB AST, which also
// normalizes the MySQL syntax.
func (a *Applier) splitWithParser(content string) []string {
	nodes, _, err := a.analyzer.parser.Parse(content, "", "")
	if err != nil {
		return nil
	}
	var stmts []string
	for _, node := range nodes {
		if node == nil {
			continue
		}
		var sb strings.Builder
		if err := node.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
			continue
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// splitWithLexer uses the atlas statement lexer, which understands quoted
// text, comments and dollar quoted bodies.
func splitWithLexer(content string) []string {
	parsed, err := migrate.Stmts(content)
	if err != nil {
		return nil
	}
	var stmts []string
	for _, s := range parsed {
		if text := strings.TrimSuffix(strings.TrimSpace(s.Text), ";"); strings.TrimSpace(text) != "" {
			stmts = append(stmts, strings.TrimSpace(text))
		}
	}
	return stmts
}

// splitStatementsBySemicolon splits on lines ending with a semicolon and
// drops line comments.
func splitStatementsBySemicolon(content string) []string {
	var stmts []string
	var current strings.Builder
	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			if s := strings.TrimSpace(current.String()); s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

// truncateSQL shortens a statement for display. max <= 0 means 60.
func truncateSQL(stmt string, max int) string {
	if max <= 0 {
		max = 60
	}
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) <= max {
		return stmt
	}
	if max <= 3 {
		return stmt[:max]
	}
	return stmt[:max-3] + "..."
}

// PreflightChecks analyzes the statements for destructive, blocking and
// non-transactional operations.
func (a *Applier) PreflightChecks(statements []string, unsafe bool) *PreflightResult {
	return a.analyzer.AnalyzeStatements(statements, unsafe)
}

// validatePreflight turns the preflight findings into an error when the
// options do not allow them.
func (a *Applier) validatePreflight(preflight *PreflightResult) error {
	if len(preflight.Errors) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(preflight.Errors, "; "))
	}
	if preflight.HasDestructiveOperations() && !a.options.Unsafe {
		return errors.New("preflight checks failed: destructive operations detected without --unsafe flag")
	}
	if a.options.Transaction && !preflight.IsTransactional && !a.options.AllowNonTransactional {
		return errors.New("preflight checks failed: migration contains non-transactional DDL statements; use --allow-non-transactional to proceed")
	}
	return nil
}

// Apply reports the preflight findings, asks for confirmation and runs the
// statements, inside one transaction when the options and the statements
// allow it.
func (a *Applier) Apply(ctx context.Context, statements []string, preflight *PreflightResult) error {
	a.statements = statements
	a.displayPreflightChecks(preflight)
	a.displayStatements(statements)

	if err := a.validatePreflight(preflight); err != nil {
		return err
	}
	if a.options.DryRun {
		a.println()
		a.colorf(color.FgCyan, "Dry run: %s statements checked, nothing applied.\n", humanize.Comma(int64(len(statements))))
		return nil
	}
	if len(statements) == 0 {
		a.println("Nothing to apply.")
		return nil
	}
	if a.db == nil {
		return errors.New("not connected to a database")
	}
	if !a.options.SkipConfirmation && !a.askConfirmation() {
		return ErrAborted
	}

	mode := "sequential"
	if a.options.Transaction && preflight.IsTransactional {
		mode = "transaction"
	}
	start := time.Now()
	var err error
	if mode == "transaction" {
		err = a.applyWithTransaction(ctx, statements)
	} else {
		err = a.applyWithoutTransaction(ctx, statements)
	}
	elapsed := time.Since(start)
	a.metrics.RecordApply(mode, elapsed, err)
	if err != nil {
		a.log.WithError(err).WithField("mode", mode).Error("migration failed")
		return err
	}

	a.log.WithFields(logrus.Fields{"mode": mode, "statements": len(statements)}).Info("migration applied")
	a.colorf(color.FgGreen, "Migration complete! Applied %s statements in %s.\n",
		humanize.Comma(int64(len(statements))), elapsed.Round(time.Millisecond))
	return nil
}

func (a *Applier) displayPreflightChecks(preflight *PreflightResult) {
	a.println("Preflight checks:")
	if a.db != nil {
		a.colorf(color.FgGreen, "  Database is accessible\n")
	}
	for _, e := range preflight.Errors {
		a.colorf(color.FgRed, "  ERROR: %s\n", e)
	}
	for _, w := range preflight.Warnings {
		switch w.Level {
		case WarnDanger:
			a.colorf(color.FgRed, "  DANGER: %s\n", w.Message)
		default:
			a.colorf(color.FgYellow, "  WARNING: %s\n", w.Message)
		}
		if w.SQL != "" {
			a.printf("    SQL: %s\n", truncateSQL(w.SQL, 80))
		}
	}
	if !preflight.IsTransactional {
		a.colorf(color.FgYellow, "  Migration is NOT transaction-safe:\n")
		for _, r := range preflight.NonTxReasons {
			a.printf("    - %s\n", r)
		}
	}
	if len(preflight.Errors) == 0 {
		a.colorf(color.FgGreen, "  All migrations are valid SQL\n")
	}
}

func (a *Applier) displayStatements(statements []string) {
	a.println()
	a.println("Statements to execute:")
	for i, stmt := range statements {
		a.printf("  %d. %s\n", i+1, truncateSQL(stmt, 100))
	}
}

func (a *Applier) askConfirmation() bool {
	a.printf("\nApply %s statements? [y/N]: ", humanize.Comma(int64(len(a.statements))))
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (a *Applier) exec(ctx context.Context, ex execer, i, total int, stmt string) error {
	a.printf("[%d/%d] %s ... ", i+1, total, truncateSQL(stmt, 0))
	start := time.Now()
	_, err := ex.ExecContext(ctx, stmt)
	elapsed := time.Since(start)
	a.metrics.RecordStatement(string(a.helper.Name()), strings.ToLower(statementKind(stmt)), elapsed, err)
	if err != nil {
		a.colorf(color.FgRed, "FAILED\n")
		return err
	}
	a.colorf(color.FgGreen, "OK (%s)\n", elapsed.Round(time.Millisecond))
	return nil
}

func (a *Applier) applyWithTransaction(ctx context.Context, statements []string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i, stmt := range statements {
		if err := a.exec(ctx, tx, i, len(statements), stmt); err != nil {
			execErr := &ExecError{Index: i, Statement: stmt, Err: err}
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("%w; rollback also failed: %v", execErr, rbErr)
			}
			execErr.RolledBack = true
			return execErr
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *Applier) applyWithoutTransaction(ctx context.Context, statements []string) error {
	if a.options.Transaction {
		a.colorf(color.FgYellow, "Applying without a transaction wrapper, DDL statements commit implicitly.\n")
	}
	for i, stmt := range statements {
		if err := a.exec(ctx, a.db, i, len(statements), stmt); err != nil {
			return &ExecError{Index: i, Statement: stmt, Applied: i, Err: err}
		}
	}
	return nil
}
