package httppresentation

import (
	"context"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const readyTimeout = 2 * time.Second

// RoleHandler is implemented by every role's handler.
type RoleHandler interface {
	Routes(r chi.Router)
}

// ReadyFunc reports whether the role can serve traffic, e.g. its database answers.
type ReadyFunc func(ctx context.Context) error

type RouterConfig struct {
	Logger      observability.Logger
	Tel         observability.Observability
	CORSOrigins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Ready   ReadyFunc
}

func NewRouter(cfg RouterConfig, handlers ...RoleHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(cfg.CORSOrigins)))
	r.Use(ObservabilityMiddleware(cfg.Logger, cfg.Tel))

	r.Get("/health", handleLive)
	r.Get("/health/live", handleLive)
	r.Get("/health/ready", handleReady(cfg.Ready))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	for _, h := range handlers {
		h.Routes(r)
	}
	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerRequestID, "traceparent", "tracestate"},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	}
}

func handleLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(ready ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := ready(ctx); err != nil {
				writeError(w, r, apperr.DependencyUnavailable("service is not ready", err))
				return
			}
		}
		handleLive(w, r)
	}
}
