package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/engine"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/store"
	ws "github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/websocket"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(pgStore *store.PostgresStore, drainer Drainer, reminder Reminder,
	guard Verifier, cb *engine.CircuitBreaker, hub *ws.Hub, pushMaxAttempts int) http.Handler {

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for scheduler triggers and dashboard
	r.Use(corsMiddleware)

	// Handlers
	notifHandler := NewNotificationHandler(pgStore, pushMaxAttempts)
	workerHandler := NewWorkerHandler(drainer, reminder)
	verifyHandler := NewVerifyHandler(guard)
	dashHandler := NewDashboardHandler(pgStore, cb, hub)

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWebSocket)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", notifHandler.Create)
			r.Get("/", notifHandler.List)
			r.Get("/{id}", notifHandler.Get)
		})

		r.Post("/worker/run", workerHandler.Run)
		r.Post("/reminders/run", workerHandler.RunReminders)

		r.Route("/verify", func(r chi.Router) {
			r.Post("/start", verifyHandler.Start)
			r.Post("/check", verifyHandler.Check)
		})

		r.Get("/budget", dashHandler.Budget)
		r.Get("/metrics", dashHandler.Metrics)
	})

	return r
}

// corsMiddleware adds permissive CORS headers so browser-triggered manual
// runs and preflight OPTIONS requests succeed.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
