package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/cvbuilder/server/internal/middleware"
)

// NewRouter sets up the HTTP router with all routes and middleware. The
// rate limiter guards the /auth routes only; limiter may be nil. GET /auth/me
// is registered only when sessions is non-nil.
func NewRouter(h *Handler, limiter *middleware.RateLimiter, sessions *middleware.SessionMiddleware, log *slog.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LogRequest(log))

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/readiness", h.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	authRoutes := router.PathPrefix("/auth").Subrouter()
	if limiter != nil {
		authRoutes.Use(limiter.Middleware)
	}
	authRoutes.HandleFunc("/providers", h.ListProviders).Methods(http.MethodGet)
	if sessions != nil {
		authRoutes.Handle("/me", sessions.RequireSession(http.HandlerFunc(h.Me))).Methods(http.MethodGet)
	}
	authRoutes.HandleFunc("/{provider}", h.Authenticate).Methods(http.MethodPost)
	authRoutes.HandleFunc("/{provider}/authorize", h.AuthorizationURL).Methods(http.MethodGet)
	authRoutes.HandleFunc("/{provider}/exchange", h.ExchangeCode).Methods(http.MethodPost)
	authRoutes.HandleFunc("/{provider}/validate", h.ValidateToken).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "NotFoundError", Message: "no such route"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "MethodNotAllowedError", Message: "method not allowed"})
	})

	return middleware.Recover(log)(router)
}
