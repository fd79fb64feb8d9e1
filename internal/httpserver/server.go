// internal/httpserver/server.go
//
// HTTP transport for the guessing game.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Inbound events: POST /events carries (player, text) to the command handler.
//   - Outbound notifications: GET /ws?player=<id> upgrades to a WebSocket.
//   - Read-only views: /players/{id}, /players/{id}/quests, /leaderboard, /shop.
//
// Notes:
//   - Player identity is opaque and supplied by the caller; there is no auth.
//   - /ws is mounted outside the request timeout so connections stay open.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/xuantien37/telegram-guess-number-bot/internal/engine"
	"github.com/xuantien37/telegram-guess-number-bot/internal/notify"
)

// Handler answers one inbound chat message.
type Handler interface {
	Handle(ctx context.Context, player, text string) []string
}

// Options configures a Server.
type Options struct {
	ClientOrigin   string        // CORS origin; "*" allows any
	RequestTimeout time.Duration // bound on non-WebSocket handlers
	Logger         zerolog.Logger
}

// Server bundles the router and its collaborators.
type Server struct {
	r       *chi.Mux
	engine  *engine.Engine
	handler Handler
	hub     *notify.Hub
	log     zerolog.Logger
	http    *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(e *engine.Engine, h Handler, hub *notify.Hub, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	s := &Server{
		r:       chi.NewRouter(),
		engine:  e,
		handler: h,
		hub:     hub,
		log:     opts.Logger.With().Str("component", "http").Logger(),
	}
	s.http = &http.Server{Handler: s.r, ReadHeaderTimeout: 5 * time.Second}

	// --- middleware ---
	s.r.Use(chimw.RequestID)         // add X-Request-ID
	s.r.Use(chimw.RealIP)            // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)         // recover from panics
	s.r.Use(cors(opts.ClientOrigin)) // single-origin CORS
	s.r.Use(requestLogger(s.log))    // one debug line per request

	// --- websocket (no timeout, no JSON header) ---
	s.r.Get("/ws", s.handleWs)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(opts.RequestTimeout))
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"guess-number","endpoints":["/health","POST /events","/ws","/players/{id}","/leaderboard","/shop"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "connected": s.hub.Connected()})
		})

		r.Post("/events", s.handleEvent)
		s.mountPlayers(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

// ------------------------------ EVENTS -------------------------------------

// eventReq/Res payloads for POST /events.
type eventReq struct {
	Player string `json:"player"`
	Text   string `json:"text"`
}
type eventRes struct {
	Replies []string `json:"replies"`
}

// handleEvent feeds one chat message to the command handler.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	req.Player = strings.TrimSpace(req.Player)
	if req.Player == "" {
		writeError(w, http.StatusBadRequest, "player_required")
		return
	}
	replies := s.handler.Handle(r.Context(), req.Player, req.Text)
	if replies == nil {
		replies = []string{}
	}
	_ = json.NewEncoder(w).Encode(eventRes{Replies: replies})
}

// handleWs subscribes a connection to a player's notifications.
func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	player := strings.TrimSpace(r.URL.Query().Get("player"))
	if player == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		writeError(w, http.StatusBadRequest, "player_required")
		return
	}
	notify.ServeWs(s.hub, w, r, player)
}

// writeError writes {"error": code} with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
