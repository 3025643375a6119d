package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/packetflow/iccr/internal/realtime"
	"github.com/packetflow/iccr/internal/registry"
	"github.com/packetflow/iccr/pkg/logger"
)

// ComponentSummary is one row of the dashboard's per-component table.
type ComponentSummary struct {
	ID                 string          `json:"id"`
	Module             string          `json:"module"`
	Health             registry.Health `json:"health"`
	MemoryBytes        float64         `json:"memory_bytes"`
	MessageQueueLength float64         `json:"message_queue_length"`
}

// Snapshot is the dashboard's point-in-time view of the runtime.
type Snapshot struct {
	TotalComponents   int                `json:"total_components"`
	HealthyCount      int                `json:"healthy_count"`
	UnhealthyCount    int                `json:"unhealthy_count"`
	RecentAlerts      []Alert            `json:"recent_alerts"`
	Components        []ComponentSummary `json:"components"`
	AvgMemoryBytes    float64            `json:"avg_memory_bytes"`
	AvgQueueLength    float64            `json:"avg_queue_length"`
}

// Snapshot builds the current dashboard view: total/healthy/unhealthy
// component counts, the 10 most recent alerts, a per-component
// summary, and aggregate memory/queue averages.
func (m *Monitor) Snapshot() Snapshot {
	infos := m.reg.List()
	snap := Snapshot{TotalComponents: len(infos)}

	var memSum, queueSum float64
	for _, info := range infos {
		summary := ComponentSummary{ID: info.ID, Module: info.Module, Health: info.Health}

		if hist := m.MetricsHistory(info.ID); len(hist) > 0 {
			latest := hist[len(hist)-1]
			summary.MemoryBytes = latest.Base.MemoryBytes
			summary.MessageQueueLength = latest.Base.MessageQueueLength
		}
		memSum += summary.MemoryBytes
		queueSum += summary.MessageQueueLength

		switch info.Health {
		case registry.Healthy, registry.Degraded:
			snap.HealthyCount++
		case registry.Unhealthy:
			snap.UnhealthyCount++
		}

		snap.Components = append(snap.Components, summary)
	}

	if len(infos) > 0 {
		snap.AvgMemoryBytes = memSum / float64(len(infos))
		snap.AvgQueueLength = queueSum / float64(len(infos))
	}
	snap.RecentAlerts = m.RecentAlerts()
	return snap
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Router builds the dashboard's HTTP surface: a JSON snapshot endpoint
// and a websocket stream of live monitoring events.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/dashboard/snapshot", m.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/stream", m.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/events", m.handleRealtimeEvents).Methods(http.MethodGet)
	r.PathPrefix("/dashboard/docs").Handler(httpSwagger.WrapHandler)
	return r
}

func (m *Monitor) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), m.logger)
	snap := m.Snapshot()
	log.Debug("dashboard snapshot served", "components", len(snap.Components))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (m *Monitor) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("dashboard websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := m.Watch()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteJSON(m.Snapshot()); err != nil {
				return
			}
		}
	}
}

// handleRealtimeEvents upgrades the connection and registers it on the
// monitor's realtime.DefaultEventBus, so it receives the richer,
// sourced/sequenced Event stream (registry lifecycle, health
// transitions, metrics rollups) that EnableRealtime publishes. Returns
// 503 if EnableRealtime was never called.
func (m *Monitor) handleRealtimeEvents(w http.ResponseWriter, r *http.Request) {
	bus := m.RealtimeBus()
	if bus == nil {
		http.Error(w, "realtime events not enabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("dashboard realtime websocket upgrade failed", "error", err)
		return
	}

	var sub *realtime.WebSocketSubscriber
	sub = realtime.NewWebSocketSubscriber(r.Context(), conn, func() {
		_ = bus.Unsubscribe(sub)
	})
	if err := bus.Subscribe(sub); err != nil {
		m.logger.Warn("dashboard realtime subscribe failed", "error", err)
		_ = sub.Close()
		return
	}

	// Block until the client disconnects; reads are discarded, since
	// this endpoint is a server-to-client event stream.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			_ = sub.Close()
			return
		}
	}
}
