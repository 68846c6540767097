package health

import (
	"context"
	"time"

	"fieldops-backend/internal/recordstore"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthChecker struct {
	db    *pgxpool.Pool
	store *recordstore.RedisStore
}

type HealthStatus struct {
	Status      string          `json:"status"`
	Database    ComponentHealth `json:"database"`
	RecordStore ComponentHealth `json:"record_store"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

func NewHealthChecker(db *pgxpool.Pool, store *recordstore.RedisStore) *HealthChecker {
	return &HealthChecker{db: db, store: store}
}

func (h *HealthChecker) CheckBasic() HealthStatus {
	dbHealth := h.checkDatabase()
	storeHealth := h.checkStore()

	status := "healthy"
	if dbHealth.Status != "healthy" || storeHealth.Status != "healthy" {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:      status,
		Database:    dbHealth,
		RecordStore: storeHealth,
	}
}

func (h *HealthChecker) checkDatabase() ComponentHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}

func (h *HealthChecker) checkStore() ComponentHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}
