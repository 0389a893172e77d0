// Package facade is the engine's only entry point for the outside world:
// execute a (possibly multi-statement) SQL script, list a session's query
// history, and reset the database. Every call that reaches the engine or
// the catalog is serialized behind a single process-wide mutex — the core
// engine has no concurrency control of its own, so the façade supplies it.
// History reads use the history store's own lock instead.
package facade

import (
	"errors"
	"sync"
	"time"

	"github.com/minisql/minisql/internal/engine"
	"github.com/minisql/minisql/internal/logging"
	"github.com/minisql/minisql/internal/storage"
)

// ExecuteResponse is the façade's uniform result envelope, mirroring the
// HTTP response body verbatim.
type ExecuteResponse struct {
	Success      bool
	Result       []map[string]any
	Columns      []string
	AffectedRows *int
	TimeMS       float64
	Message      *string
	Error        *string
}

// Facade owns the catalog and history ring and is the sole caller of the
// engine package.
type Facade struct {
	mu  sync.Mutex
	cat *storage.Catalog

	maxQueryLen   int
	maxResultRows int

	history *historyStore
}

// New wires a Facade around an already-open catalog.
func New(cat *storage.Catalog, maxResultRows, maxHistory int) *Facade {
	return &Facade{
		cat:           cat,
		maxResultRows: maxResultRows,
		history:       newHistoryStore(maxHistory),
	}
}

// Execute lexes, parses, and runs every statement in sql in order,
// aggregating success and stopping at the first failure. The envelope
// reflects the last statement executed (or the first error). A
// multi-statement script that fails partway leaves every earlier
// statement's effects in place — only the failing statement itself is
// atomic, per the engine's per-statement mutation contract.
func (f *Facade) Execute(sql, sessionID string) ExecuteResponse {
	start := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	log := logging.WithSession(sessionID)

	stmts, err := engine.ParseStatements(sql)
	if err != nil {
		resp := errorResponse(err, time.Since(start))
		f.record(sessionID, sql, resp)
		log.Warn("execute failed to parse", "error", err)
		return resp
	}

	var last any
	for _, stmt := range stmts {
		res, err := engine.Execute(f.cat, stmt)
		if err != nil {
			resp := errorResponse(err, time.Since(start))
			f.record(sessionID, sql, resp)
			log.Warn("execute failed", "error", err)
			return resp
		}
		last = res
	}

	resp := f.successResponse(last, time.Since(start))
	f.record(sessionID, sql, resp)
	log.Info("execute succeeded", "statements", len(stmts), "time_ms", resp.TimeMS)
	return resp
}

func (f *Facade) successResponse(last any, elapsed time.Duration) ExecuteResponse {
	resp := ExecuteResponse{Success: true, TimeMS: elapsedMS(elapsed)}
	switch r := last.(type) {
	case *engine.ResultSet:
		rows := make([]map[string]any, len(r.Rows))
		for i, row := range r.Rows {
			m := make(map[string]any, len(row))
			for k, v := range row {
				m[k] = v.Any()
			}
			rows[i] = m
		}
		truncated := false
		if f.maxResultRows > 0 && len(rows) > f.maxResultRows {
			rows = rows[:f.maxResultRows]
			truncated = true
		}
		resp.Result = rows
		resp.Columns = r.Columns
		if truncated {
			msg := "result truncated to the configured row cap"
			resp.Message = &msg
		}
	case *engine.MutationReport:
		n := r.AffectedRows
		resp.AffectedRows = &n
		msg := r.Message
		resp.Message = &msg
	}
	return resp
}

func errorResponse(err error, elapsed time.Duration) ExecuteResponse {
	msg := classifyError(err)
	return ExecuteResponse{Success: false, TimeMS: elapsedMS(elapsed), Error: &msg}
}

func elapsedMS(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

// classifyError renders the first error in the chain as "<Kind>: message",
// matching spec.md §7's error taxonomy.
func classifyError(err error) string {
	var lex *engine.LexError
	var parse *engine.ParseError
	var sem *engine.SemanticError
	var typ *engine.TypeError
	var constraint *engine.ConstraintError
	var io *storage.IOError
	switch {
	case errors.As(err, &lex):
		return lex.Error()
	case errors.As(err, &parse):
		return parse.Error()
	case errors.As(err, &sem):
		return sem.Error()
	case errors.As(err, &typ):
		return typ.Error()
	case errors.As(err, &constraint):
		return constraint.Error()
	case errors.As(err, &io):
		return io.Error()
	default:
		return "Error: " + err.Error()
	}
}

func (f *Facade) record(sessionID, query string, resp ExecuteResponse) {
	f.history.push(sessionID, HistoryEntry{
		Query:        query,
		Timestamp:    time.Now(),
		Success:      resp.Success,
		TimeMS:       resp.TimeMS,
		AffectedRows: resp.AffectedRows,
	})
}

// History returns the most recent queries for sessionID, newest first,
// capped at limit (0 means the façade's configured per-session cap).
func (f *Facade) History(sessionID string, limit int) ([]HistoryEntry, int) {
	return f.history.snapshot(sessionID, limit)
}

// Reset deletes the root data directory and recreates it empty, clearing
// every in-memory table. History is left intact: it is keyed by session,
// not by database contents.
func (f *Facade) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cat.Reset()
}

// Tables reports every table's name, schema, and current row count.
func (f *Facade) Tables() ([]TableInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := f.cat.TableNames()
	out := make([]TableInfo, 0, len(names))
	for _, name := range names {
		schema, ok := f.cat.Schema(name)
		if !ok {
			continue
		}
		n, err := f.cat.RowCount(name)
		if err != nil {
			return nil, err
		}
		out = append(out, TableInfo{Name: name, Columns: schema.Columns, RowCount: n})
	}
	return out, nil
}

// TableInfo describes one catalog table for the /api/v1/tables endpoint.
type TableInfo struct {
	Name     string
	Columns  []storage.Column
	RowCount int
}

// MaxQueryLen reports the per-request query length cap in bytes stored on
// the façade. Execute does not enforce it; the HTTP server enforces its
// own cap, set through httpapi.WithMaxQueryLen.
func (f *Facade) MaxQueryLen() int { return f.maxQueryLen }

// SetMaxQueryLen stores the value reported by MaxQueryLen.
func (f *Facade) SetMaxQueryLen(n int) { f.maxQueryLen = n }
