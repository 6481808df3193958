// internal/server/server.go
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"librarium/internal/catalog"
	"librarium/internal/circulation"
	"librarium/internal/domain"
	"librarium/internal/eventlog"
	"librarium/internal/httpapi"
	"librarium/internal/membership"
	"librarium/internal/storage"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Store  storage.Store
	Logger logrus.FieldLogger
	Clock  domain.Clock
	// Limiter is optional; nil disables rate limiting.
	Limiter       httpapi.Limiter
	MeterProvider metric.MeterProvider
	TxMaxAttempts int
}

// NewRouter wires services and handlers over deps.Store and returns the root handler.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	var retry []storage.RetryOption
	if deps.TxMaxAttempts > 0 {
		retry = append(retry, storage.WithMaxAttempts(deps.TxMaxAttempts))
	}

	events := eventlog.New(deps.Clock)
	users := membership.NewService(deps.Store, events, deps.Logger, deps.Clock)
	books := catalog.NewService(deps.Store, events, deps.Logger, retry...)

	circOpts := []circulation.Option{
		circulation.WithClock(deps.Clock),
		circulation.WithRetryOptions(retry...),
	}
	if deps.MeterProvider != nil {
		circOpts = append(circOpts, circulation.WithMeterProvider(deps.MeterProvider))
	}
	loans, err := circulation.NewService(deps.Store, events, deps.Logger, circOpts...)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(httpapi.RequestID)
	r.Use(httpapi.AccessLog(deps.Logger))
	if deps.Limiter != nil {
		r.Use(httpapi.RateLimit(deps.Limiter))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	membership.NewHandler(users).Routes(r)
	catalog.NewHandler(books).Routes(r)
	circulation.NewHandler(loans).Routes(r)

	return r, nil
}
