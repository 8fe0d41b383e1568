/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Tracing:    OpenTelemetry server spans (no-op until a provider is set)
  3. Logger:     Request logging through the handler's slog logger
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/variants, /api/defaults   Calculator metadata
  /api/compute, /api/schedule    Stateless computation
  /api/export                    Stateless workbook export
  /api/scenarios/*               Saved scenarios and run history
  /api/presets/*                 Preset scenarios
  /                              Endpoint index

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// tracerName is the instrumentation scope of the server spans.
const tracerName = "proforma-api"

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows every origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(otelhttp.NewMiddleware(tracerName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(h.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Calculator routes
		r.Get("/variants", h.ListVariants)
		r.Get("/defaults", h.GetDefaults)
		r.Post("/compute", h.Compute)
		r.Post("/schedule", h.ComputeSchedule)
		r.Post("/export", h.ExportModel)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.CreateScenario)
			r.Get("/{id}", h.GetScenario)
			r.Put("/{id}", h.UpdateScenario)
			r.Delete("/{id}", h.DeleteScenario)
			r.Post("/{id}/mode", h.SetMode)
			r.Patch("/{id}/expenses", h.UpdateExpenses)
			r.Get("/{id}/projection", h.GetProjection)
			r.Get("/{id}/runs", h.ListRuns)
			r.Get("/{id}/export", h.ExportScenario)
			r.Get("/{id}/report", h.GetReport)
		})

		// Preset routes
		r.Route("/presets", func(r chi.Router) {
			r.Get("/", h.ListPresets)
			r.Post("/load", h.LoadPresets)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Pro-Forma Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Pro-Forma Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/variants">/api/variants</a> - Calculator variants</li>
<li><a href="/api/defaults">/api/defaults</a> - Default model document</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Saved scenarios</li>
<li><a href="/api/presets">/api/presets</a> - Preset scenarios</li>
</ul>
<p>POST a model document to <code>/api/compute</code> for a projection.</p>
</body>
</html>`))
	})

	return r
}
