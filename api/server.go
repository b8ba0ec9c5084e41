/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     One logrus entry per request (status, bytes, duration)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for a separate frontend

ROUTE GROUPS:
  /api/items/*          Items, snapshots, history and events
  /api/transactions/*   Single rows and voids
  /api/categories       Category management
  /api/reports/*        Activity summaries
  /api/admin/*          Backup, restore and integrity check
  /api/scenarios/*      Demo data for an empty ledger

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	if len(h.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Get("/search", h.SearchItems)
			r.Get("/low-stock", h.LowStock)
			r.Get("/sku/{sku}", h.GetItemBySKU)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetItem)
				r.Put("/", h.UpdateItem)
				r.Delete("/", h.DeactivateItem)
				r.Get("/transactions", h.GetHistory)
				r.Post("/purchases", h.RecordPurchase)
				r.Post("/donations", h.RecordDonation)
				r.Post("/distributions", h.RecordDistribution)
			})
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Get("/{id}", h.GetTransaction)
			r.Post("/{id}/void", h.VoidTransaction)
		})

		// Category routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})

		r.Get("/reports/summary", h.GetSummary)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/backups", h.ListBackups)
			r.Post("/backup", h.Backup)
			r.Post("/restore", h.Restore)
			r.Get("/integrity", h.CheckIntegrity)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one entry per request once the response is written.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				entry := log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"remote":     r.RemoteAddr,
					"status":     status,
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
				})
				switch {
				case status >= http.StatusInternalServerError:
					entry.Error("request failed")
				case status >= http.StatusBadRequest:
					entry.Warn("request rejected")
				default:
					entry.Info("request")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
