package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputManagerWritesHeadersOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	require.NoError(t, err)

	require.NoError(t, om.WriteStep(StepStats{Step: 10, TotalDensity: 1.5}))
	require.NoError(t, om.WriteStep(StepStats{Step: 20, TotalDensity: 1.25}))
	require.NoError(t, om.WriteEvent(Event{Type: EventBurnout, Step: 20, Description: "done"}))
	require.NoError(t, om.Close())

	data, err := os.ReadFile(filepath.Join(dir, "steps.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "step,sim_time,dt,total_density"))
	assert.True(t, strings.HasPrefix(lines[2], "20,"))

	data, err = os.ReadFile(filepath.Join(dir, "events.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "burnout,20")
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	require.NoError(t, err)
	assert.Nil(t, om)
	assert.NoError(t, om.WriteStep(StepStats{}))
	assert.NoError(t, om.Close())
	assert.Equal(t, "", om.Dir())
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(5)
	for i := 0; i < 5; i++ {
		c.Advance(0.1)
	}
	require.True(t, c.ShouldFlush(5))

	stats := c.Flush(5, 0.1, FieldSample{
		Density:        []float32{1, 2, 3},
		Temperature:    []float32{0, 10, 20},
		Velocity:       []float32{3, 4, 0},
		VelocityStride: 3,
		Divergence:     []float32{0.01, -0.02},
	}, ParticleCounts{Fuel: 10, Burning: 4})

	assert.InDelta(t, 0.5, stats.SimTime, 1e-9)
	assert.InDelta(t, 6, stats.TotalDensity, 1e-6)
	assert.InDelta(t, 5, stats.MaxSpeed, 1e-6)
	assert.InDelta(t, 0.02, stats.MaxResidual, 1e-6)
	assert.Equal(t, 4, stats.Burning)
	assert.InDelta(t, 10, stats.TempMean, 1e-9)
	assert.InDelta(t, 20, stats.TempMax, 1e-9)
	assert.False(t, c.ShouldFlush(9))
	assert.True(t, c.ShouldFlush(10))
}
