package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOutboxMetrics(t *testing.T) {
	metrics := NewOutboxMetrics()

	if metrics == nil {
		t.Fatal("NewOutboxMetrics should not return nil")
	}
	if metrics.attempts == nil {
		t.Error("attempts counter vec should not be nil")
	}
	if metrics.pending == nil {
		t.Error("pending gauge should not be nil")
	}
	if metrics.oldestPending == nil {
		t.Error("oldestPending gauge should not be nil")
	}
}

func TestRecordAttempt(t *testing.T) {
	metrics := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordAttempt(OutboxRetryError)
	metrics.RecordAttempt(OutboxRetryError)
	metrics.RecordAttempt(OutboxSent)

	if got := counterVecValue(t, metrics.attempts, OutboxRetryError); got != 2 {
		t.Errorf("expected retry_error=2, got %v", got)
	}
	if got := counterVecValue(t, metrics.attempts, OutboxSent); got != 1 {
		t.Errorf("expected sent=1, got %v", got)
	}
	if got := counterVecValue(t, metrics.attempts, OutboxFailed); got != 0 {
		t.Errorf("expected failed=0, got %v", got)
	}
}

func TestSetBacklog(t *testing.T) {
	metrics := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.SetBacklog(3, time.Now().Add(-10*time.Second))
	if got := gaugeValue(t, metrics.pending); got != 3 {
		t.Errorf("expected pending=3, got %v", got)
	}
	if got := gaugeValue(t, metrics.oldestPending); got < 9 {
		t.Errorf("expected oldest age about 10s, got %v", got)
	}

	metrics.SetBacklog(0, time.Time{})
	if got := gaugeValue(t, metrics.pending); got != 0 {
		t.Errorf("expected pending=0, got %v", got)
	}
	if got := gaugeValue(t, metrics.oldestPending); got != 0 {
		t.Errorf("expected oldest age reset to 0, got %v", got)
	}
}

func TestSetBacklog_FutureTimestamp(t *testing.T) {
	metrics := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.SetBacklog(1, time.Now().Add(time.Hour))
	if got := gaugeValue(t, metrics.oldestPending); got != 0 {
		t.Errorf("expected clamped age 0, got %v", got)
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
