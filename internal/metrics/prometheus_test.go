package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordSessionCreated()
	m.RecordSessionCreated()
	m.SetActiveSessions(2)
	m.RecordTurnStarted()
	m.RecordTurnCompleted(true, 0.5, 1.2)
	m.RecordBargeIn()
	m.RecordHTTPRequest("GET", "/healthz", "200", 0.001)

	if got := testutil.ToFloat64(m.SessionsCreated); got != 2 {
		t.Errorf("Expected 2 sessions created, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 2 {
		t.Errorf("Expected 2 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.FallbackReplies); got != 1 {
		t.Errorf("Expected 1 fallback reply, got %v", got)
	}
	if got := testutil.ToFloat64(m.BargeIns); got != 1 {
		t.Errorf("Expected 1 barge-in, got %v", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide when registered separately.
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.RecordTurnStarted()
	if got := testutil.ToFloat64(b.TurnsStarted); got != 0 {
		t.Errorf("Expected isolated registries, got %v", got)
	}
}
