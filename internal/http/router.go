package http

import (
	"fieldops-backend/internal/handlers"
	"fieldops-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	scheduleHandler *handlers.ScheduleHandler,
	historyHandler *handlers.HistoryHandler,
	streamHandler *handlers.StreamHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Authenticated API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Active schedule + responsibility workflow
	api.HandleFunc("/programacoes", scheduleHandler.ListSchedule).Methods("GET")
	api.HandleFunc("/programacoes", scheduleHandler.CreateSchedule).Methods("POST")
	api.HandleFunc("/programacoes/stream", streamHandler.Stream).Methods("GET")
	api.HandleFunc("/programacoes/{key}/claim-operation", scheduleHandler.ClaimOperation).Methods("POST")
	api.HandleFunc("/programacoes/{key}/claim-loading", scheduleHandler.ClaimLoading).Methods("POST")
	api.HandleFunc("/programacoes/{key}/edit", scheduleHandler.EditClaim).Methods("POST")
	api.HandleFunc("/programacoes/{key}/complete", scheduleHandler.Complete).Methods("POST")
	api.HandleFunc("/programacoes/{key}/retry-delete", scheduleHandler.RetryDelete).Methods("POST")

	// History (archive of concluded operations)
	api.HandleFunc("/historico", historyHandler.ListHistory).Methods("GET")
	api.HandleFunc("/historico/{key}", historyHandler.GetHistory).Methods("GET")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware.RequireAdmin)
	admin.HandleFunc("/users", userHandler.ListUsers).Methods("GET")
	admin.HandleFunc("/users", userHandler.CreateUser).Methods("POST")
	admin.HandleFunc("/users/{id}/access", userHandler.UpdateAccess).Methods("PUT")
	admin.HandleFunc("/reconcile", scheduleHandler.Reconcile).Methods("POST")

	return r
}
