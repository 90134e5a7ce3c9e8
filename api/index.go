// Package handler exposes the API as a single serverless function.
package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/amirasaad/chipload/infra/initializer"
	"github.com/amirasaad/chipload/pkg/app"
	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

var (
	once    sync.Once
	handler http.HandlerFunc
)

// Handler is the function entry point. The app is built on the first
// request and reused while the instance stays warm.
func Handler(w http.ResponseWriter, r *http.Request) {
	// fiber routes on RequestURI
	r.RequestURI = r.URL.String()

	once.Do(func() { handler = build() })
	handler.ServeHTTP(w, r)
}

func build() http.HandlerFunc {
	cfg, err := config.Load()
	if err != nil {
		return unavailable("load configuration", err)
	}
	// Serverless instances have no long-lived process for the sweeper.
	cfg.Matcher.SweepEnabled = false

	deps, _, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return unavailable("initialize dependencies", err)
	}
	a, err := app.New(deps)
	if err != nil {
		return unavailable("build services", err)
	}
	return adaptor.FiberApp(webapi.SetupApp(a))
}

func unavailable(step string, err error) http.HandlerFunc {
	slog.Error("Failed to "+step, "error", err)
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(fiber.HeaderContentType, "application/problem+json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"title":"Service unavailable","status":503}`))
	}
}
