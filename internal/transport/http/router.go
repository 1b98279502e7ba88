// Package httptransport assembles the HTTP router. It wires middleware and
// mounts handlers; no business logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	carthandler "cartsync/internal/cart/handler"
	identityhandler "cartsync/internal/identity/handler"
	platformmetrics "cartsync/internal/platform/metrics"
	"cartsync/internal/platform/middleware"
	"cartsync/internal/transport/http/shared"
)

// HealthChecker reports whether a backing resource is reachable.
type HealthChecker func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Cart     *carthandler.Handler
	Identity *identityhandler.Handler
	Resolver middleware.SessionResolver
	Logger   *slog.Logger
	Metrics  *platformmetrics.Metrics

	// Health checks by resource name; nil entries are skipped.
	Health map[string]HealthChecker
}

// NewRouter wires all endpoints. Cart and sign-out routes sit behind bearer
// auth; sign-in, health, and metrics are public.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Middleware)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	deps.Identity.RegisterPublic(r)
	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Resolver, deps.Logger))
		deps.Identity.RegisterAuthenticated(r)
		deps.Cart.Register(r)
	})

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		shared.WriteJSON(w, status, result)
	}
}
