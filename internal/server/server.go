// Package server composes the StudySphere API: it wires repositories, services and
// handlers and exposes them as one gin engine.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"studysphere/internal/auth"
	"studysphere/internal/config"
	"studysphere/internal/database"
	"studysphere/internal/groups"
	"studysphere/internal/session"
	"studysphere/internal/storage"
	"studysphere/internal/studysession"
	"studysphere/internal/xp"
)

// Deps are the infrastructure clients the API runs on. Storage and Publisher may be nil.
type Deps struct {
	DB        database.Service
	Sessions  session.Manager
	Cache     session.Store
	Storage   storage.Service
	Publisher xp.Publisher
}

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.APIConfig
	deps   Deps
	logger *slog.Logger

	auth     *auth.Handler
	groups   *groups.Handler
	sessions *studysession.Handler
	xp       *xp.Handler
}

// NewServer wires every domain package on top of deps
func NewServer(cfg *config.APIConfig, deps Deps, logger *slog.Logger) *Server {
	board := xp.NewLeaderboard(xp.NewRepository(deps.DB), deps.Cache, cfg.LeaderboardCacheTTL, logger)
	announcer := xp.NewAnnouncer(deps.Publisher, board, logger)

	authService := auth.NewService(auth.NewRepository(deps.DB), logger)
	groupService := groups.NewService(groups.NewRepository(deps.DB), announcer, logger)

	opts := studysession.Options{PublicBaseURL: cfg.PublicBaseURL}
	if deps.Storage != nil {
		opts.Files = storage.NewUploads(deps.Storage, cfg.UploadURLTTL)
	}
	sessionService := studysession.NewService(studysession.NewRepository(deps.DB), groupService, announcer, opts, logger)

	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		auth: auth.NewHandler(authService, deps.Sessions, auth.HandlerOptions{
			SessionMaxAge: cfg.SessionMaxAge,
			SecureCookies: cfg.SecureCookies,
		}, logger),
		groups:   groups.NewHandler(groupService, logger),
		sessions: studysession.NewHandler(sessionService, logger),
		xp:       xp.NewHandler(board, logger),
	}
}

// HTTPServer returns the configured *http.Server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.RegisterRoutes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
