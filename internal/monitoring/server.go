package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"fieldops-backend/internal/repositories"
	"fieldops-backend/internal/schedule"
	"fieldops-backend/internal/timeutil"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// MonitoringServer is a small ops dashboard on its own port: current system
// load plus live schedule figures, pushed to connected dashboards over
// WebSocket every few seconds.
type MonitoringServer struct {
	scheduleRepo *repositories.ScheduleRepository
	historyRepo  *repositories.HistoryRepository
	port         int
	clients      map[*websocket.Conn]bool
	clientsMux   sync.Mutex
	startedAt    time.Time
}

type DashboardStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	ActiveTotal   int     `json:"active_total"`
	OverdueTotal  int     `json:"overdue_total"`
	DueTodayTotal int     `json:"due_today_total"`
	HistoryTotal  int     `json:"history_total"`
	Uptime        string  `json:"uptime"`
}

var monitoringUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewMonitoringServer(scheduleRepo *repositories.ScheduleRepository, historyRepo *repositories.HistoryRepository, port int) *MonitoringServer {
	return &MonitoringServer{
		scheduleRepo: scheduleRepo,
		historyRepo:  historyRepo,
		port:         port,
		clients:      make(map[*websocket.Conn]bool),
		startedAt:    time.Now(),
	}
}

func (s *MonitoringServer) collectStats() DashboardStats {
	stats := DashboardStats{
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	}

	if percent, err := cpu.Percent(0, false); err == nil && len(percent) > 0 {
		stats.CPUPercent = percent[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = du.UsedPercent
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if entries, err := s.scheduleRepo.List(ctx); err == nil {
		stats.ActiveTotal = len(entries)
		today := timeutil.Now()
		for _, e := range entries {
			switch schedule.Classify(e.DeliveryDate, today) {
			case schedule.Overdue:
				stats.OverdueTotal++
			case schedule.DueToday:
				stats.DueTodayTotal++
			}
		}
	}
	if history, err := s.historyRepo.List(ctx); err == nil {
		stats.HistoryTotal = len(history)
	}

	return stats
}

func (s *MonitoringServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.collectStats())
}

func (s *MonitoringServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := monitoringUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Monitoring] upgrade failed: %v", err)
		return
	}

	s.clientsMux.Lock()
	s.clients[conn] = true
	s.clientsMux.Unlock()

	// Reader loop only to detect close
	go func() {
		defer func() {
			s.clientsMux.Lock()
			delete(s.clients, conn)
			s.clientsMux.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *MonitoringServer) broadcastLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.clientsMux.Lock()
		idle := len(s.clients) == 0
		s.clientsMux.Unlock()
		if idle {
			continue
		}

		stats := s.collectStats()
		s.clientsMux.Lock()
		for conn := range s.clients {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(stats); err != nil {
				delete(s.clients, conn)
				conn.Close()
			}
		}
		s.clientsMux.Unlock()
	}
}

// Start blocks serving the dashboard endpoints
func (s *MonitoringServer) Start() {
	r := mux.NewRouter()
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/ws", s.handleWS)

	go s.broadcastLoop()

	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("[Monitoring] dashboard running on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Printf("[Monitoring] server stopped: %v", err)
	}
}
