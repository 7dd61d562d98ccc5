package telemetry

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name   string
		values []float32
		want   float64
	}{
		{"empty", nil, 0},
		{"non-negative", []float32{1, 2, 3.5}, 6.5},
		{"mixed sign", []float32{1, -2, 3}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Total(tt.values); math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("Total(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestMaxAbs(t *testing.T) {
	if got := MaxAbs([]float32{0.5, -3, 2}); got != 3 {
		t.Errorf("MaxAbs = %v, want 3", got)
	}
	if got := MaxAbs(nil); got != 0 {
		t.Errorf("MaxAbs(nil) = %v, want 0", got)
	}
}

func TestSpeedStats(t *testing.T) {
	// Two 3-vectors: (3,4,0) and (0,0,1)
	values := []float32{3, 4, 0, 0, 0, 1}
	maxSpeed, energy := SpeedStats(values, 3)

	if math.Abs(maxSpeed-5) > 1e-5 {
		t.Errorf("maxSpeed = %v, want 5", maxSpeed)
	}
	if math.Abs(energy-13) > 1e-4 {
		t.Errorf("energy = %v, want 13", energy)
	}
}

func TestCountNonFinite(t *testing.T) {
	values := []float32{1, float32(math.NaN()), float32(math.Inf(1)), 0}
	if got := CountNonFinite(values); got != 2 {
		t.Errorf("CountNonFinite = %d, want 2", got)
	}
}
