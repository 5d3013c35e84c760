package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"PerpCore/internal/observability"
)

func TestHealthChecker_Liveness(t *testing.T) {
	hc := observability.NewHealthChecker()

	rec := httptest.NewRecorder()
	hc.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rec.Code)
	}
}

func TestHealthChecker_ReadinessTransitions(t *testing.T) {
	hc := observability.NewHealthChecker()

	rec := httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: got %d, want 503", rec.Code)
	}

	hc.SetReady(true)
	rec = httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after ready: got %d, want 200", rec.Code)
	}
	if !hc.IsReady() {
		t.Error("IsReady should report true")
	}

	hc.SetReady(false)
	rec = httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("after shutdown: got %d, want 503", rec.Code)
	}
}
