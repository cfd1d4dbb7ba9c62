package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	m := New("1.0.0", "abc123", nil)

	m.ObserveOperation("get_patient", OutcomeSuccess, 5*time.Millisecond)
	m.ObserveOperation("get_patient", OutcomeSuccess, 7*time.Millisecond)
	m.ObserveOperation("get_patient", OutcomeUnauthorized, time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("get_patient", OutcomeSuccess)); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("get_patient", OutcomeUnauthorized)); got != 1 {
		t.Errorf("unauthorized count = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("1.0.0", "abc123", nil)
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`ehrgate_build_info{commit="abc123",version="1.0.0"} 1`,
		`ehrgate_http_requests_total{method="GET",route="/health",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestSampleCredentials(t *testing.T) {
	m := New("dev", "none", nil)
	m.Start(func(context.Context) (Stats, error) {
		return Stats{Credentials: 5, ActiveCredentials: 3}, nil
	})
	m.Shutdown()

	if got := testutil.ToFloat64(m.credentials.WithLabelValues("active")); got != 3 {
		t.Errorf("active = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.credentials.WithLabelValues("inactive")); got != 2 {
		t.Errorf("inactive = %v, want 2", got)
	}
}

func TestSampleErrorKeepsPreviousValues(t *testing.T) {
	m := New("dev", "none", nil)
	m.sample(context.Background(), func(context.Context) (Stats, error) {
		return Stats{Credentials: 1, ActiveCredentials: 1}, nil
	})
	m.sample(context.Background(), func(context.Context) (Stats, error) {
		return Stats{}, errors.New("db down")
	})
	if got := testutil.ToFloat64(m.credentials.WithLabelValues("active")); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	// None of these should panic.
	m.ObserveOperation("x", OutcomeSuccess, time.Second)
	m.ObserveHTTP("GET", "/", 200, time.Second)
	m.InFlight(1)
	m.StreamOpened()
	m.StreamClosed()
	m.Start(nil)
	m.Shutdown()
	if m.Registry() != nil || m.Uptime() != 0 {
		t.Error("nil metrics should report zero values")
	}
}
