package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StepStats holds the sampled state of the fluid at the end of a step.
type StepStats struct {
	Step    int32   `csv:"step"`
	SimTime float64 `csv:"sim_time"`
	DT      float64 `csv:"dt"`

	// Field totals
	TotalDensity     float64 `csv:"total_density"`
	TotalTemperature float64 `csv:"total_temperature"`
	KineticEnergy    float64 `csv:"kinetic_energy"`

	// Temperature distribution
	TempMean float64 `csv:"temp_mean"`
	TempP90  float64 `csv:"temp_p90"`
	TempMax  float64 `csv:"temp_max"`

	// Velocity magnitude in cells per step
	MaxSpeed float64 `csv:"max_speed"`

	// Divergence left after projection (largest absolute entry)
	MaxResidual float64 `csv:"max_residual"`

	// Particle census, zero for smoke
	Fuel      int     `csv:"fuel"`
	Soot      int     `csv:"soot"`
	Unignited int     `csv:"unignited"`
	Burning   int     `csv:"burning"`
	Spent     int     `csv:"spent"`
	FuelMass  float64 `csv:"fuel_mass"`
	SootMass  float64 `csv:"soot_mass"`
	MaxPartT  float64 `csv:"max_particle_temp"`

	// NaNs counts non-finite entries across sampled fields
	NaNs int `csv:"nans"`
}

// FieldSummary describes the distribution of a scalar field.
type FieldSummary struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
	P10  float64
	P50  float64
	P90  float64
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summarize computes distribution statistics for a scalar field.
func Summarize(values []float32) FieldSummary {
	n := len(values)
	if n == 0 {
		return FieldSummary{}
	}

	xs := make([]float64, 0, n)
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		xs = append(xs, f)
	}
	if len(xs) == 0 {
		return FieldSummary{}
	}

	mean, std := stat.PopMeanStdDev(xs, nil)
	sort.Float64s(xs)

	return FieldSummary{
		Mean: mean,
		Std:  std,
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
		P10:  Percentile(xs, 0.10),
		P50:  Percentile(xs, 0.50),
		P90:  Percentile(xs, 0.90),
	}
}

// Total sums a field. Non-negative fields go through blas32.Asum.
func Total(values []float32) float64 {
	if len(values) == 0 {
		return 0
	}
	nonNeg := true
	for _, v := range values {
		if v < 0 {
			nonNeg = false
			break
		}
	}
	if nonNeg {
		return float64(blas32.Asum(vec(values)))
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum
}

// MaxAbs returns the largest absolute entry of a field.
func MaxAbs(values []float32) float64 {
	if len(values) == 0 {
		return 0
	}
	i := blas32.Iamax(vec(values))
	return math.Abs(float64(values[i]))
}

// SpeedStats returns the largest speed and the kinetic energy (half the
// squared norm) of a vector field with the given stride.
func SpeedStats(values []float32, stride int) (maxSpeed, energy float64) {
	if len(values) == 0 || stride < 1 {
		return 0, 0
	}
	nrm := float64(blas32.Nrm2(vec(values)))
	energy = 0.5 * nrm * nrm

	for i := 0; i+stride <= len(values); i += stride {
		var sq float64
		for c := 0; c < stride; c++ {
			v := float64(values[i+c])
			sq += v * v
		}
		if sq > maxSpeed {
			maxSpeed = sq
		}
	}
	return math.Sqrt(maxSpeed), energy
}

// CountNonFinite counts NaN and infinite entries.
func CountNonFinite(values []float32) int {
	n := 0
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			n++
		}
	}
	return n
}

func vec(values []float32) blas32.Vector {
	return blas32.Vector{N: len(values), Inc: 1, Data: values}
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("step", int(s.Step)),
		slog.Float64("sim_time", s.SimTime),
		slog.Float64("dt", s.DT),
		slog.Float64("total_density", s.TotalDensity),
		slog.Float64("total_temperature", s.TotalTemperature),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("temp_p90", s.TempP90),
		slog.Float64("max_speed", s.MaxSpeed),
		slog.Float64("max_residual", s.MaxResidual),
	}
	if s.Fuel > 0 || s.Soot > 0 {
		attrs = append(attrs,
			slog.Int("burning", s.Burning),
			slog.Int("spent", s.Spent),
			slog.Float64("fuel_mass", s.FuelMass),
			slog.Float64("soot_mass", s.SootMass),
		)
	}
	if s.NaNs > 0 {
		attrs = append(attrs, slog.Int("nans", s.NaNs))
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the step stats using slog.
func (s StepStats) LogStats() {
	slog.Info("stats", "step", s)
}
