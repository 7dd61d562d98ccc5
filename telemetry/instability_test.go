package telemetry

import (
	"math"
	"testing"
)

func hasEvent(events []Event, typ EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestInstabilityDetector_DivergenceSpike(t *testing.T) {
	d := NewInstabilityDetector(10, 8, 0)

	for i := 0; i < 5; i++ {
		d.Check(StepStats{Step: int32(i), MaxResidual: 0.01})
	}

	events := d.Check(StepStats{Step: 5, MaxResidual: 0.5})
	if !hasEvent(events, EventDivergenceSpike) {
		t.Error("expected divergence_spike event")
	}

	events = d.Check(StepStats{Step: 6, MaxResidual: 0.012})
	if hasEvent(events, EventDivergenceSpike) {
		t.Error("residual near the average should not spike")
	}
}

func TestInstabilityDetector_NonFiniteOnce(t *testing.T) {
	d := NewInstabilityDetector(10, 8, 0)

	if !hasEvent(d.Check(StepStats{Step: 1, NaNs: 3}), EventNonFinite) {
		t.Error("expected non_finite event")
	}
	if hasEvent(d.Check(StepStats{Step: 2, NaNs: 3}), EventNonFinite) {
		t.Error("non_finite should only be reported once")
	}
	d.Reset()
	if !hasEvent(d.Check(StepStats{Step: 3, NaNs: 1}), EventNonFinite) {
		t.Error("expected non_finite event after reset")
	}
}

func TestInstabilityDetector_SpeedLimitRearms(t *testing.T) {
	d := NewInstabilityDetector(10, 8, 4)

	tests := []struct {
		speed float64
		want  bool
	}{
		{10, false}, // 1 cell per step
		{50, true},  // 5 cells per step
		{60, false}, // still over, already reported
		{20, false},
		{45, true},
	}
	for i, tt := range tests {
		got := hasEvent(d.Check(StepStats{Step: int32(i), DT: 0.1, MaxSpeed: tt.speed}), EventSpeedLimit)
		if got != tt.want {
			t.Errorf("step %d speed %v: event = %v, want %v", i, tt.speed, got, tt.want)
		}
	}
}

func TestInstabilityDetector_Lifecycle(t *testing.T) {
	d := NewInstabilityDetector(10, 8, 0)

	if len(d.Check(StepStats{Step: 0, Fuel: 100, Unignited: 100})) != 0 {
		t.Error("no events expected before ignition")
	}
	if !hasEvent(d.Check(StepStats{Step: 1, Fuel: 100, Burning: 40, Unignited: 60}), EventIgnition) {
		t.Error("expected ignition event")
	}
	if hasEvent(d.Check(StepStats{Step: 2, Fuel: 100, Burning: 90, Spent: 10}), EventIgnition) {
		t.Error("ignition should only be reported once")
	}
	if !hasEvent(d.Check(StepStats{Step: 3, Fuel: 100, Spent: 100}), EventBurnout) {
		t.Error("expected burnout event")
	}
}

func TestSummarize(t *testing.T) {
	values := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, float32(math.NaN())}
	s := Summarize(values)

	if math.Abs(s.Mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", s.Mean)
	}
	if math.Abs(s.P10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", s.P10)
	}
	if math.Abs(s.P90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", s.P90)
	}
	if math.Abs(s.Min-0.1) > 1e-6 || math.Abs(s.Max-1.0) > 1e-6 {
		t.Errorf("min/max = %v/%v", s.Min, s.Max)
	}
}
