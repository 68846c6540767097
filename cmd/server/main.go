package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"fieldops-backend/internal/auth"
	"fieldops-backend/internal/backup"
	"fieldops-backend/internal/config"
	"fieldops-backend/internal/database"
	"fieldops-backend/internal/db"
	"fieldops-backend/internal/handlers"
	"fieldops-backend/internal/health"
	h "fieldops-backend/internal/http"
	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/monitoring"
	"fieldops-backend/internal/recordstore"
	"fieldops-backend/internal/repositories"
	"fieldops-backend/internal/services"
	"fieldops-backend/migrations"
)

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Connect to the accounts database
	pool, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	log.Printf("Connected to database %s@%s", cfg.Database.Name, cfg.Database.Host)

	// Connect to the record store (scheduling collections live here)
	store, err := recordstore.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to record store: %v", err)
	}
	defer store.Close()
	log.Printf("[RecordStore] connected to %s", cfg.Redis.Addr)

	// Run database migrations
	// Uses embedded migrations for standalone binary operation
	log.Println("Running database migrations...")
	migrator := database.NewMigratorWithFS(pool, migrations.FS, ".")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrator.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize JWT manager and repositories
	jwtManager := auth.NewJWTManager(cfg)
	userRepo := repositories.NewUserRepository(pool)
	scheduleRepo := repositories.NewScheduleRepository(store)
	historyRepo := repositories.NewHistoryRepository(store)

	// Initialize services
	policy := services.NewAccessPolicy()
	userService := services.NewUserService(userRepo, jwtManager)
	assigner := services.NewAssignmentService(scheduleRepo, policy, cfg.Schedule.ClaimMode)
	completer := services.NewCompletionService(scheduleRepo, historyRepo, policy)
	log.Printf("[Schedule] claim mode: %s", cfg.Schedule.ClaimMode)

	// Start the partial-completion reconciler
	reconciler := services.NewReconciler(store,
		time.Duration(cfg.Schedule.ReconcileIntervalMinutes)*time.Minute)
	reconciler.Start()
	defer reconciler.Stop()

	// Start history backup exporter (optional)
	if cfg.Backup.Enabled {
		exporter, err := backup.NewExporter(historyRepo, cfg)
		if err != nil {
			log.Printf("[Backup] disabled, client setup failed: %v", err)
		} else {
			exporter.Start()
			defer exporter.Stop()
		}
	} else {
		log.Println("[Backup] disabled by configuration")
	}

	// Initialize middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)
	corsMiddleware := middleware.NewCORS(cfg)
	healthChecker := health.NewHealthChecker(pool, store)

	authHandler := handlers.NewAuthHandler(userService)
	userHandler := handlers.NewUserHandler(userService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, assigner, completer, reconciler, policy)
	historyHandler := handlers.NewHistoryHandler(historyRepo)
	streamHandler := handlers.NewStreamHandler(scheduleRepo)
	healthHandler := handlers.NewHealthHandler(healthChecker)

	// Start monitoring dashboard server in background
	go monitoring.NewMonitoringServer(scheduleRepo, historyRepo, cfg.Server.MonitoringPort).Start()

	router := h.NewRouter(authHandler, userHandler, scheduleHandler, historyHandler,
		streamHandler, healthHandler, authMiddleware)

	// Wrap with panic recovery and metrics middleware
	handler := middleware.PanicRecovery(middleware.MetricsMiddleware(corsMiddleware(router)))

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
