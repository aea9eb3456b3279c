// Package instruments wires common client libraries into the tracking
// engine. The database/sql instrumentation wraps any driver: queries run
// under SQL spans tagged with their statement and feed the N+1 detector,
// which attaches a backtrace to the span that crosses the threshold.
// Template rendering runs under Template/Render spans via WrapTemplate.
//
// Only context-carrying calls are observed; the tracked request travels
// in the context.Context the adapter placed it in.
package instruments

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/databill86/scout-apm-go/internal/tracked"
)

// Span operations for database work.
const (
	OpQuery = "SQL/Query"
	OpExec  = "SQL/Exec"
)

// StatementTag is the span tag carrying the raw SQL text.
const StatementTag = "db.statement"

// WrapDriver returns an instrumented copy of d, suitable for
// sql.Register under a new name.
func WrapDriver(d driver.Driver) driver.Driver {
	return &wrapDriver{wrapped: d}
}

type wrapDriver struct {
	wrapped driver.Driver
}

func (d *wrapDriver) Open(name string) (driver.Conn, error) {
	c, err := d.wrapped.Open(name)
	if err != nil {
		return nil, err
	}
	return &wrapConn{wrapped: c}, nil
}

type wrapConn struct {
	wrapped driver.Conn
}

func (c *wrapConn) Prepare(query string) (driver.Stmt, error) {
	s, err := c.wrapped.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &wrapStmt{wrapped: s, query: query}, nil
}

func (c *wrapConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if pc, ok := c.wrapped.(driver.ConnPrepareContext); ok {
		s, err := pc.PrepareContext(ctx, query)
		if err != nil {
			return nil, err
		}
		return &wrapStmt{wrapped: s, query: query}, nil
	}
	return c.Prepare(query)
}

func (c *wrapConn) Close() error { return c.wrapped.Close() }

func (c *wrapConn) Begin() (driver.Tx, error) {
	return c.wrapped.Begin() //nolint:staticcheck // driver.Conn interface
}

func (c *wrapConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if bt, ok := c.wrapped.(driver.ConnBeginTx); ok {
		return bt.BeginTx(ctx, opts)
	}
	return c.Begin()
}

// QueryContext defers to the wrapped driver's fast path; ErrSkip sends
// database/sql down the prepared-statement path, which is instrumented
// too, so nothing is lost on drivers without QueryerContext.
func (c *wrapConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := c.wrapped.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	finish := observe(ctx, OpQuery, query)
	rows, err := qc.QueryContext(ctx, query, args)
	finish()
	return rows, err
}

func (c *wrapConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := c.wrapped.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	finish := observe(ctx, OpExec, query)
	res, err := ec.ExecContext(ctx, query, args)
	finish()
	return res, err
}

func (c *wrapConn) Ping(ctx context.Context) error {
	if p, ok := c.wrapped.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type wrapStmt struct {
	wrapped driver.Stmt
	query   string
}

func (s *wrapStmt) Close() error  { return s.wrapped.Close() }
func (s *wrapStmt) NumInput() int { return s.wrapped.NumInput() }

func (s *wrapStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.wrapped.Exec(args) //nolint:staticcheck // driver.Stmt interface
}

func (s *wrapStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.wrapped.Query(args) //nolint:staticcheck // driver.Stmt interface
}

func (s *wrapStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	finish := observe(ctx, OpExec, s.query)
	defer finish()

	if sec, ok := s.wrapped.(driver.StmtExecContext); ok {
		return sec.ExecContext(ctx, args)
	}
	vals, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	return s.wrapped.Exec(vals) //nolint:staticcheck // fallback for pre-context drivers
}

func (s *wrapStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	finish := observe(ctx, OpQuery, s.query)
	defer finish()

	if sqc, ok := s.wrapped.(driver.StmtQueryContext); ok {
		return sqc.QueryContext(ctx, args)
	}
	vals, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	return s.wrapped.Query(vals) //nolint:staticcheck // fallback for pre-context drivers
}

// observe opens a SQL span when ctx carries a tracked request. The
// returned func feeds the call-set detector and closes the span; it is
// a no-op for untracked contexts.
func observe(ctx context.Context, operation, query string) func() {
	r, ok := tracked.FromContext(ctx)
	if !ok {
		return func() {}
	}
	span := r.StartSpan(operation)
	span.Tag(StatementTag, query)

	return func() {
		cs := r.CallSet()
		if captured := cs.Update(query); captured {
			span.SetBacktrace(cs.BacktraceFor(query))
		}
		if r.CurrentSpan() == span {
			r.StopSpan()
		}
	}
}

// namedValues lowers NamedValue args for pre-context driver calls.
func namedValues(args []driver.NamedValue) ([]driver.Value, error) {
	vals := make([]driver.Value, len(args))
	for i, nv := range args {
		if nv.Name != "" {
			return nil, errors.New("sql: driver does not support named parameters")
		}
		vals[i] = nv.Value
	}
	return vals, nil
}
