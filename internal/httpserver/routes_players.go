// internal/httpserver/routes_players.go
//
// Read-only JSON views over engine state:
//   - GET /players/{id}         → profile (record, level, running session)
//   - GET /players/{id}/quests  → quest progress
//   - GET /leaderboard?limit=N  → top players by score (default 20, max 100)
//   - GET /shop                 → catalog
//
// Mutations go through POST /events so that every change is a chat command.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultLeaderboard = 20
	maxLeaderboard     = 100
)

// mountPlayers registers the read-only routes.
func (s *Server) mountPlayers(r chi.Router) {
	r.Route("/players/{id}", func(r chi.Router) {
		r.Get("/", s.handleProfile)
		r.Get("/quests", s.handleQuests)
	})
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/shop", s.handleShop)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.engine.Profile(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleQuests(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.engine.Quests(r.Context(), chi.URLParam(r, "id")))
}

// handleLeaderboard returns the top players. limit is clamped to [1, 100].
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboard
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		limit = min(n, maxLeaderboard)
	}
	type row struct {
		Rank  int    `json:"rank"`
		ID    string `json:"id"`
		Score int    `json:"score"`
		Wins  int    `json:"wins"`
	}
	out := []row{}
	for i, rec := range s.engine.Leaderboard(r.Context(), limit) {
		out = append(out, row{Rank: i + 1, ID: rec.ID, Score: rec.Score, Wins: rec.Wins})
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.engine.Catalog())
}
