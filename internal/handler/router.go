/*
Package handler provides the HTTP handlers and routing setup for the voice relay.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API, WebSocket
and the static entry page).
*/
package handler

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"voicerelay/internal/pkg/logx"
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It configures CORS, applies global middleware and puts the per-IP limiters from deps in
// front of the upgrade endpoint and the API.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth())

	r.Route("/api", func(api chi.Router) {
		api.Use(deps.APILimiter.Middleware)
		api.Get("/ice-servers", HandleGetICEServers(deps))
		api.Get("/stats", HandleGetStats(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, deps.JoinLimiter, deps))

	if static := staticHandler(deps.Config.StaticDir); static != nil {
		r.Handle("/*", static)
	}

	return r
}

// staticHandler serves the client entry page. It returns nil when dir does not exist.
func staticHandler(dir string) http.Handler {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logx.Warn("Static directory not found, entry page disabled.", "static_dir", dir)
		return nil
	}

	return http.FileServer(http.Dir(dir))
}
