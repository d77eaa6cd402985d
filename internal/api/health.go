package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/audioscribe/internal/metrics"
)

// MQTTStatus reports the event publisher connection.
type MQTTStatus interface {
	IsConnected() bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Engine        string            `json:"engine"`
	Model         string            `json:"model,omitempty"`
	Strategy      string            `json:"strategy"`
	Transcoder    string            `json:"transcoder"`
	InFlight      int               `json:"in_flight"`
	LiveScopes    int               `json:"live_scopes"`
	Checks        map[string]string `json:"checks"`
}

// HealthInfo is the static part of the health report.
type HealthInfo struct {
	Engine     string
	Model      string
	Strategy   string
	Transcoder string // "none" when only WAV can be decoded
}

type HealthHandler struct {
	info      HealthInfo
	live      metrics.LiveStats
	mqtt      MQTTStatus
	version   string
	startTime time.Time
}

// NewHealthHandler creates the health handler. live and mqtt may be nil.
func NewHealthHandler(info HealthInfo, live metrics.LiveStats, mqtt MQTTStatus, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		info:      info,
		live:      live,
		mqtt:      mqtt,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	// Without a transcoder only RIFF/WAVE uploads can be served.
	if h.info.Transcoder == "" || h.info.Transcoder == "none" {
		checks["transcoder"] = "unavailable"
		status = "degraded"
	} else {
		checks["transcoder"] = "ok"
	}

	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			status = "degraded"
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Engine:        h.info.Engine,
		Model:         h.info.Model,
		Strategy:      h.info.Strategy,
		Transcoder:    h.info.Transcoder,
		Checks:        checks,
	}
	if h.live != nil {
		resp.InFlight = h.live.InFlight()
		resp.LiveScopes = h.live.LiveScopes()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
