package roster

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/auth"
	"github.com/MaraKorvus/lobotjr/player"
)

// AdminHandler serves operator tools: inspect players, grant coins and xp,
// and list group finder tickets.
type AdminHandler struct {
	auth   auth.Service
	roster *Roster
	finder *adventure.GroupFinder
}

type errorResponse struct {
	Error string `json:"error"`
}

type grantRequest struct {
	Amount int `json:"amount"`
}

type playerResponse struct {
	Name     string   `json:"name"`
	Class    string   `json:"class"`
	Level    int      `json:"level"`
	XP       int      `json:"xp"`
	Coins    int      `json:"coins"`
	Equipped []string `json:"equipped"`
	Items    []string `json:"items"`
	Queued   bool     `json:"queued"`
}

func NewAdminHandler(authService auth.Service, roster *Roster, finder *adventure.GroupFinder) *AdminHandler {
	return &AdminHandler{auth: authService, roster: roster, finder: finder}
}

func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/players/", auth.RequireSession(h.auth, h.handlePlayer))
	mux.HandleFunc("/api/admin/groupfinder", auth.RequireSession(h.auth, h.handleGroupFinder))
}

// handlePlayer serves /api/admin/players/{name}[/coins|/xp].
func (h *AdminHandler) handlePlayer(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/players/"), "/"), "/")
	if parts[0] == "" || len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	p, err := h.roster.Get(parts[0])
	if err != nil {
		if errors.Is(err, ErrUnknownPlayer) {
			writeError(w, http.StatusNotFound, "player not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load player failed")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, h.describe(p))
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req grantRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch parts[1] {
	case "coins":
		p.AddCoins(req.Amount)
	case "xp":
		p.AddXP(req.Amount)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := h.roster.Save(p); err != nil {
		writeError(w, http.StatusInternalServerError, "save player failed")
		return
	}
	writeJSON(w, http.StatusOK, h.describe(p))
}

func (h *AdminHandler) handleGroupFinder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tickets":          h.finder.Tickets(),
		"average_wait_sec": int(h.finder.AverageWait().Seconds()),
	})
}

func (h *AdminHandler) describe(p *player.Player) playerResponse {
	resp := playerResponse{
		Name:     p.Name(),
		Class:    p.Class().String(),
		Level:    p.Level(),
		XP:       p.XP(),
		Coins:    p.Coins(),
		Equipped: []string{},
		Items:    []string{},
	}
	for _, it := range p.EquippedItems() {
		resp.Equipped = append(resp.Equipped, it.Name)
	}
	for _, it := range p.Items() {
		resp.Items = append(resp.Items, it.Name)
	}
	if h.finder != nil {
		resp.Queued = h.finder.IsQueued(p)
	}
	return resp
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
