package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics("detonate")
	m.ObserveStep(3*time.Millisecond, map[string]int{"Jacobi": 10, "Projection": 1})
	m.ObserveStep(2*time.Millisecond, map[string]int{"Jacobi": 10})
	m.ObserveEvent(Event{Type: EventIgnition})
	m.SetBurning(42)
	m.SetAllocated(1 << 20)

	body := scrape(t, m)
	assert.Contains(t, body, "detonate_steps_total 2")
	assert.Contains(t, body, `detonate_dispatches_total{kernel="Jacobi"} 20`)
	assert.Contains(t, body, `detonate_events_total{type="ignition"} 1`)
	assert.Contains(t, body, "detonate_particles_burning 42")
	assert.Contains(t, body, "detonate_step_duration_seconds_count 2")
}

func TestMetricsAreIsolated(t *testing.T) {
	a := NewMetrics("detonate")
	b := NewMetrics("detonate")
	a.ObserveReset()

	assert.Contains(t, scrape(t, a), "detonate_resets_total 1")
	assert.True(t, strings.Contains(scrape(t, b), "detonate_resets_total 0"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveStep(time.Millisecond, map[string]int{"Advect": 1})
	m.SetBurning(1)
	assert.Nil(t, m.Registry())
}
