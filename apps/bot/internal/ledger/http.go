package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MaraKorvus/lobotjr/apps/bot/internal/auth"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/codec"
)

type HTTPHandler struct {
	auth   auth.Service
	ledger Service
}

type errorResponse struct {
	Error string `json:"error"`
}

type eventResponse struct {
	Seq        uint64          `json:"seq"`
	EventType  string          `json:"event_type"`
	ServerTsMs int64           `json:"server_ts_ms"`
	Envelope   json.RawMessage `json:"envelope"`
}

func NewHTTPHandler(authService auth.Service, ledgerService Service) *HTTPHandler {
	return &HTTPHandler{
		auth:   authService,
		ledger: ledgerService,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/audit/runs/recent", auth.RequireSession(h.auth, h.handleRecent))
	mux.HandleFunc("/api/audit/runs/", auth.RequireSession(h.auth, h.handleRun))
	mux.HandleFunc("/api/audit/players/", auth.RequireSession(h.auth, h.handlePlayerRuns))
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListRecent(ctx, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query recent runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handlePlayerRuns serves /api/audit/players/{name}/runs.
func (h *HTTPHandler) handlePlayerRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/audit/players/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "runs" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListByPlayer(ctx, parts[0], parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query player runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player": parts[0], "items": items})
}

// handleRun serves /api/audit/runs/{id} with decoded events.
func (h *HTTPHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/audit/runs/"), "/")
	if runID == "" || strings.Contains(runID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	events, err := h.ledger.GetRunEvents(ctx, runID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query run events failed")
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		raw, err := base64.StdEncoding.DecodeString(e.EnvelopeB64)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "corrupt event envelope")
			return
		}
		rendered, err := codec.JSON(raw)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "corrupt event envelope")
			return
		}
		out = append(out, eventResponse{
			Seq:        e.Seq,
			EventType:  e.EventType,
			ServerTsMs: e.ServerTsMs,
			Envelope:   rendered,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"events": out,
	})
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return clampLimit(n)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
