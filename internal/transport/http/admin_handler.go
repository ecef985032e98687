package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
)

// AdminHandler exposes the operator endpoints: room listing, results queries,
// the bulk session cleanup and the network pause toggle.
type AdminHandler struct {
	rooms    *app.RoomService
	sessions *app.SessionService
	archive  app.ScoreArchive
	liveness app.RoomLivenessLister
	togglers []app.NetworkToggler
}

// NewAdminHandler takes the optional operator dependencies as nil-able: no
// archive means 503 on results, no liveness lister means plain room listings,
// no togglers means the network toggle is a no-op.
func NewAdminHandler(rooms *app.RoomService, sessions *app.SessionService, archive app.ScoreArchive, liveness app.RoomLivenessLister, togglers []app.NetworkToggler) *AdminHandler {
	return &AdminHandler{rooms: rooms, sessions: sessions, archive: archive, liveness: liveness, togglers: togglers}
}

// Register wires the admin routes onto the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/rooms", h.listRooms)
	mux.HandleFunc("/admin/cleanup", h.cleanup)
	mux.HandleFunc("/admin/results", h.results)
	mux.HandleFunc("/admin/results/played", h.alreadyPlayed)
	mux.HandleFunc("/admin/sessions/last-ended", h.lastEnded)
	mux.HandleFunc("/admin/network/pause", h.networkPause)
	mux.HandleFunc("/admin/network/resume", h.networkResume)
}

// roomStatus is a room annotated with its reservation liveness marker.
type roomStatus struct {
	domain.Room
	Live bool `json:"live"`
}

func (h *AdminHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.liveness == nil {
		writeJSON(w, rooms)
		return
	}
	live, err := h.liveness.LiveRooms(r.Context(), rooms)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	statuses := make([]roomStatus, 0, len(rooms))
	for _, room := range rooms {
		statuses = append(statuses, roomStatus{Room: room, Live: live[room.ID]})
	}
	writeJSON(w, statuses)
}

// networkPause suspends the best-effort cache writes on every registered
// layer. The in-memory store stays authoritative, so games keep running.
func (h *AdminHandler) networkPause(w http.ResponseWriter, r *http.Request) {
	h.toggleNetwork(w, r, false)
}

func (h *AdminHandler) networkResume(w http.ResponseWriter, r *http.Request) {
	h.toggleNetwork(w, r, true)
}

func (h *AdminHandler) toggleNetwork(w http.ResponseWriter, r *http.Request, enabled bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	for _, toggler := range h.togglers {
		if enabled {
			toggler.Resume()
		} else {
			toggler.Suspend()
		}
	}
	writeJSON(w, map[string]any{"enabled": enabled, "layers": len(h.togglers)})
}

// cleanup deletes every non-ended session across all rooms. Stuck sessions
// left behind by a dead tv are recovered this way.
func (h *AdminHandler) cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	deleted, err := h.sessions.CleanupNonEnded(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"deleted": deleted})
}

// results serves the archive: all scores by default, one user's history with
// ?userId=, a room leaderboard with ?roomId= (and optional ?limit=).
func (h *AdminHandler) results(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "score archive not configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	if userID := q.Get("userId"); userID != "" {
		scores, err := h.archive.UserHistory(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, scores)
		return
	}
	if roomID := q.Get("roomId"); roomID != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		scores, err := h.archive.RoomLeaderboard(r.Context(), roomID, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, scores)
		return
	}
	scores, err := h.archive.AllScores(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, scores)
}

func (h *AdminHandler) alreadyPlayed(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "score archive not configured", http.StatusServiceUnavailable)
		return
	}
	document := r.URL.Query().Get("document")
	if document == "" {
		http.Error(w, "missing document", http.StatusBadRequest)
		return
	}
	played, err := h.archive.AlreadyPlayed(r.Context(), document)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"played": played})
}

// lastEnded returns the most recent finished session of a room, for the
// results screen shown after a game.
func (h *AdminHandler) lastEnded(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}
	session, err := h.sessions.FindMostRecentEnded(r.Context(), roomID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, session)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
