package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeMQTT struct{ connected bool }

func (f fakeMQTT) IsConnected() bool { return f.connected }

type fakeLive struct{ inFlight, scopes int }

func (f fakeLive) InFlight() int   { return f.inFlight }
func (f fakeLive) LiveScopes() int { return f.scopes }

func getHealth(t *testing.T, h http.Handler) HealthResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealth_Healthy(t *testing.T) {
	info := HealthInfo{Engine: "whisper", Model: "small", Strategy: "segments", Transcoder: "ffmpeg"}
	h := NewHealthHandler(info, fakeLive{inFlight: 2, scopes: 2}, fakeMQTT{connected: true}, "v1.2.3", time.Now().Add(-time.Minute))

	resp := getHealth(t, h)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, checks = %v", resp.Status, resp.Checks)
	}
	if resp.Engine != "whisper" || resp.Model != "small" || resp.Strategy != "segments" {
		t.Errorf("unexpected engine info: %+v", resp)
	}
	if resp.InFlight != 2 || resp.LiveScopes != 2 {
		t.Errorf("live stats = %d/%d", resp.InFlight, resp.LiveScopes)
	}
	if resp.UptimeSeconds < 59 {
		t.Errorf("uptime = %d", resp.UptimeSeconds)
	}
	if resp.Version != "v1.2.3" {
		t.Errorf("version = %q", resp.Version)
	}
}

func TestHealth_MQTTNotConfigured(t *testing.T) {
	h := NewHealthHandler(HealthInfo{Transcoder: "ffmpeg"}, nil, nil, "dev", time.Now())
	resp := getHealth(t, h)
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Checks["mqtt"] != "not_configured" {
		t.Errorf("mqtt check = %q", resp.Checks["mqtt"])
	}
}

func TestHealth_Degraded(t *testing.T) {
	t.Run("mqtt_disconnected", func(t *testing.T) {
		h := NewHealthHandler(HealthInfo{Transcoder: "sox"}, nil, fakeMQTT{}, "dev", time.Now())
		resp := getHealth(t, h)
		if resp.Status != "degraded" || resp.Checks["mqtt"] != "disconnected" {
			t.Errorf("status = %q, checks = %v", resp.Status, resp.Checks)
		}
	})
	t.Run("no_transcoder", func(t *testing.T) {
		h := NewHealthHandler(HealthInfo{Transcoder: "none"}, nil, nil, "dev", time.Now())
		resp := getHealth(t, h)
		if resp.Status != "degraded" || resp.Checks["transcoder"] != "unavailable" {
			t.Errorf("status = %q, checks = %v", resp.Status, resp.Checks)
		}
	})
}
