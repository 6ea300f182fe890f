package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/websocket"
)

func NewRouter(env *Env) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication handled in handler via query param
	r.Get("/ws", websocket.HandleWebSocket(env.Hub, env.DB, env.JWTSecret))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", Login(env))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(env.JWTSecret))

			r.Get("/auth/status", GetAuthStatus(env))
			r.Post("/users/fcm-token", RegisterFCMToken(env))
		})

		r.Route("/driver", func(r chi.Router) {
			r.Use(middleware.Auth(env.JWTSecret))
			r.Use(middleware.RequireRole(models.RoleDriver))

			r.Get("/attendance/today", GetTodayAttendance(env))
			r.Post("/attendance/clock-in", ClockIn(env))
			r.Post("/attendance/clock-out", ClockOut(env))
			r.Post("/attendance/lunch/start", StartLunch(env))
			r.Post("/attendance/lunch/end", EndLunch(env))
			r.Get("/attendance/forgotten-checkout", GetForgottenCheckout(env))
			r.Post("/attendance/regularize", RequestRegularization(env))
			r.Post("/attendance/force-checkout", ForceCheckout(env))

			// Sent periodically while on shift
			r.Post("/location", UpdateLocation(env))

			r.Get("/tasks", GetDriverTasks(env))
			r.Get("/tasks/{id}", GetTask(env))
			r.Post("/tasks/{id}/status", AdvanceTask(env))
			r.Post("/tasks/{id}/worker-checkins", CheckInWorkers(env))
			r.Post("/tasks/{id}/delay", ReportDelay(env))
			r.Post("/tasks/{id}/breakdown", ReportBreakdown(env))
			r.Post("/tasks/{id}/vehicle-request", RequestVehicle(env))
		})

		r.Route("/supervisor", func(r chi.Router) {
			r.Use(middleware.Auth(env.JWTSecret))
			r.Use(middleware.RequireRole(models.RoleSupervisor))

			r.Post("/users", CreateUser(env))
			r.Post("/tasks", CreateTask(env))
			r.Get("/tasks/{id}", GetTask(env))
			r.Post("/tasks/{id}/vehicle-request/resolve", ResolveVehicleRequest(env))
			r.Get("/events", ListEvents(env))
			r.Get("/attendance/open", ListOpenSessions(env))
			r.Get("/drivers/{id}/location", GetDriverLocation(env))
		})
	})

	return r
}
