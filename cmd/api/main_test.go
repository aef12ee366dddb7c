package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/rafamhanel/web-app-agenda/internal/config"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveInbound("whatsapp", "success")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "agenda_webhook_inbound_total") {
		t.Fatalf("expected inbound counter to be exported")
	}
}

func TestSetupMetricsIsRepeatable(t *testing.T) {
	// Each call uses its own registry, so wiring twice must not panic.
	setupMetrics()
	setupMetrics()
}

func TestTracingConfig(t *testing.T) {
	cfg := &appconfig.Config{OTELEndpoint: "collector:4317", OTELServiceName: "agenda", OTELSampleRatio: 0.5}
	if tc := tracingConfig(cfg); tc.Endpoint != "" {
		t.Fatalf("expected export disabled, got endpoint %q", tc.Endpoint)
	}
	cfg.OTELEnabled = true
	tc := tracingConfig(cfg)
	if tc.Endpoint != "collector:4317" || tc.SampleRatio != 0.5 || tc.ServiceName != "agenda" {
		t.Fatalf("unexpected tracing config: %+v", tc)
	}
}
