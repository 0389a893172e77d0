package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/minisql/minisql/internal/logging"
	"github.com/minisql/minisql/internal/storage"
)

// ---------------------------- POST /api/v1/execute ----------------------------

type executeRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type executeResponse struct {
	Success      bool             `json:"success"`
	Result       []map[string]any `json:"result"`
	Columns      []string         `json:"columns"`
	TimeMS       float64          `json:"time_ms"`
	Message      *string          `json:"message"`
	Error        *string          `json:"error"`
	AffectedRows *int             `json:"affected_rows"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxQueryLen)+4096) // headroom for the JSON envelope
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "request body too large or unreadable"})
		return
	}
	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Query) > s.maxQueryLen {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "query exceeds the configured length cap"})
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	resp := s.facade.Execute(req.Query, sessionID)
	logging.WithComponent("httpapi").Info("execute",
		"request_id", requestID(r.Context()), "session", sessionID,
		"success", resp.Success, "time_ms", resp.TimeMS)

	writeJSON(w, http.StatusOK, executeResponse{
		Success:      resp.Success,
		Result:       resp.Result,
		Columns:      resp.Columns,
		TimeMS:       resp.TimeMS,
		Message:      resp.Message,
		Error:        resp.Error,
		AffectedRows: resp.AffectedRows,
	})
}

// ---------------------------- GET /api/v1/history ----------------------------

type historyResponse struct {
	SessionID string              `json:"session_id"`
	Queries   []historyEntryJSON  `json:"queries"`
	Total     int                 `json:"total"`
}

type historyEntryJSON struct {
	Query        string  `json:"query"`
	Timestamp    string  `json:"timestamp"`
	Success      bool    `json:"success"`
	TimeMS       float64 `json:"time_ms"`
	AffectedRows *int    `json:"affected_rows"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	limit := s.defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, total := s.facade.History(sessionID, limit)
	out := make([]historyEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = historyEntryJSON{
			Query:        e.Query,
			Timestamp:    e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Success:      e.Success,
			TimeMS:       e.TimeMS,
			AffectedRows: e.AffectedRows,
		}
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Queries: out, Total: total})
}

// ---------------------------- POST /api/v1/reset ----------------------------

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.Reset(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	logging.WithComponent("httpapi").Info("reset", "request_id", requestID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---------------------------- GET /api/v1/tables ----------------------------

type tablesResponse struct {
	Tables []tableJSON `json:"tables"`
}

type tableJSON struct {
	Name     string       `json:"name"`
	Columns  []columnJSON `json:"columns"`
	RowCount int          `json:"row_count"`
}

type columnJSON struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Flags      flagsJSON `json:"flags"`
	References *refJSON `json:"references,omitempty"`
}

type flagsJSON struct {
	PrimaryKey bool `json:"primary_key"`
	NotNull    bool `json:"not_null"`
	Unique     bool `json:"unique"`
}

type refJSON struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.facade.Tables()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	out := make([]tableJSON, len(tables))
	for i, t := range tables {
		out[i] = tableJSON{Name: t.Name, Columns: toColumnJSON(t.Columns), RowCount: t.RowCount}
	}
	writeJSON(w, http.StatusOK, tablesResponse{Tables: out})
}

func toColumnJSON(cols []storage.Column) []columnJSON {
	out := make([]columnJSON, len(cols))
	for i, c := range cols {
		cj := columnJSON{
			Name: c.Name,
			Type: c.Type.String(),
			Flags: flagsJSON{
				PrimaryKey: c.PrimaryKey,
				NotNull:    c.NotNull,
				Unique:     c.Unique,
			},
		}
		if c.References != nil {
			cj.References = &refJSON{Table: c.References.Table, Column: c.References.Column}
		}
		out[i] = cj
	}
	return out
}

// ---------------------------- GET /health ----------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
