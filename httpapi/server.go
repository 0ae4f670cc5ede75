// Package httpapi exposes the auth engine over HTTP. Tokens travel in
// HttpOnly cookies; request and response bodies are JSON.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tokenforge/authd"
)

type Server struct {
	engine  *authd.Engine
	cookies *CookieManager
	logger  *slog.Logger
}

func NewServer(engine *authd.Engine, cookies *CookieManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cookies == nil {
		cookies = NewCookieManager("", false, "lax")
	}
	return &Server{engine: engine, cookies: cookies, logger: logger}
}

// Router builds the route tree.
//
//	POST   /auth/code   request an authcode for an email
//	POST   /auth/token  exchange an authcode for a token pair
//	GET    /auth/token  verify the access token, optionally refreshing
//	PATCH  /auth/token  rotate the token pair
//	DELETE /auth/token  delete the session
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/code", s.createAuthcode)
		r.Route("/token", func(r chi.Router) {
			r.Post("/", s.createTokenPair)
			r.Get("/", s.checkToken)
			r.Patch("/", s.refreshTokenPair)
			r.Delete("/", s.deleteTokenPair)
		})
	})

	r.Get("/healthz", s.health)
	r.Get("/internal/metrics", s.metrics)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) metrics(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.MetricsSnapshot()
	out := make(map[string]uint64, len(snap))
	for id, v := range snap {
		out[id.String()] = v
	}
	writeJSON(w, http.StatusOK, out)
}
