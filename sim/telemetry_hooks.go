package sim

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/telemetry"
)

// afterStep feeds the step into metrics and, at window boundaries, samples
// the fields for stats and instability detection.
func (s *Simulation) afterStep(dt float32, elapsed time.Duration) {
	s.collector.Advance(float64(dt))

	if s.metrics != nil {
		dispatches := make(map[string]int)
		for _, r := range s.counters {
			for k, n := range r.Drain() {
				dispatches[k] += n
			}
		}
		s.metrics.ObserveStep(elapsed, dispatches)
	}

	every := s.cfg.Telemetry.CensusEvery
	if s.particles != nil && every > 0 && s.step%int32(every) == 0 {
		s.takeCensus()
	}

	s.flushTelemetry(dt)
}

func (s *Simulation) takeCensus() {
	c, err := s.Census()
	if err != nil {
		slog.Error("particle census failed", "error", err)
		return
	}
	s.lastCensus = telemetry.ParticleCounts{
		Fuel:      c.Fuel,
		Soot:      c.Soot,
		Unignited: c.Unignited,
		Burning:   c.Burning,
		Spent:     c.Spent,
		FuelMass:  c.FuelMass,
		SootMass:  c.SootMass,
		MaxTmp:    float64(c.MaxTemp),
	}
	s.metrics.SetBurning(c.Burning)
	slog.Debug("particle census", "step", s.step, "census", c)
}

// flushTelemetry checks if the stats window should be flushed and handles
// instability events.
func (s *Simulation) flushTelemetry(dt float32) {
	if !s.collector.ShouldFlush(s.step) {
		return
	}

	fields, err := s.sampleFields()
	if err != nil {
		slog.Error("failed to sample fields", "step", s.step, "error", err)
		return
	}

	stats := s.collector.Flush(s.step, float64(dt), fields, s.lastCensus)
	perfStats := s.perfCollector.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if s.outputManager != nil {
		if err := s.outputManager.WriteStep(stats); err != nil {
			slog.Error("failed to write stats", "error", err)
		}
		if err := s.outputManager.WritePerf(perfStats, stats.Step); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, e := range s.detector.Check(stats) {
		s.recordEvent(e)
	}
}

func (s *Simulation) recordEvent(e telemetry.Event) {
	e.Step = s.step
	e.LogEvent()
	s.metrics.ObserveEvent(e)
	if s.outputManager != nil {
		if err := s.outputManager.WriteEvent(e); err != nil {
			slog.Error("failed to write event", "error", err)
		}
	}
}

// sampleFields reads the fields back. Divergence is recomputed from the
// projected velocity so it holds the residual the projection left behind.
func (s *Simulation) sampleFields() (telemetry.FieldSample, error) {
	var fs telemetry.FieldSample
	var err error
	g := s.grids

	if g.Density != nil {
		if fs.Density, err = s.ReadField(GridDensity); err != nil {
			return fs, err
		}
	}
	if fs.Temperature, err = s.ReadField(GridTemperature); err != nil {
		return fs, err
	}
	if fs.Velocity, err = s.ReadField(GridVelocity); err != nil {
		return fs, err
	}
	fs.VelocityStride = compute.StrideVector

	if s.divergence.Enabled() {
		if err := s.divergence.Compute(s.size, g.Velocity, g.Obstacles, g.Divergence); err != nil {
			return fs, err
		}
		fs.Divergence = make([]float32, g.Divergence.Buffer().Len())
		if err := s.dev.ReadBack(g.Divergence.Buffer(), fs.Divergence); err != nil {
			return fs, err
		}
	}
	return fs, nil
}
