package server

import (
	"net/http"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Database  string                 `json:"database"`
	Audio     string                 `json:"audio"`
	Sessions  int                    `json:"activeSessions"`
	Tracks    int                    `json:"trackCount"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (rs *RemoteServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(rs.startedAt).Round(time.Second).String(),
		Database:  "ok",
		Audio:     "ok",
		Tracks:    rs.machine.Catalog().Len(),
		Details:   make(map[string]interface{}),
	}

	if rs.db == nil {
		health.Database = "disabled"
	} else if count, err := rs.db.SessionCount(); err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details["database_error"] = err.Error()
	} else {
		health.Sessions = count
	}

	// Without an audio device the player still works as a remote, so this
	// does not make the service unhealthy
	if !rs.audio {
		health.Audio = "unavailable"
	}

	if health.Tracks == 0 {
		health.Details["catalog"] = "empty"
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	rs.respondJSON(w, statusCode, health)
}
