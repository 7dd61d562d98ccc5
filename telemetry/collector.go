package telemetry

// FieldSample holds the read-back fields a stats window is computed from.
// Nil slices are skipped.
type FieldSample struct {
	Density        []float32
	Temperature    []float32
	Velocity       []float32
	VelocityStride int
	Divergence     []float32 // residual after projection
}

// ParticleCounts is the particle census at the sampled step.
type ParticleCounts struct {
	Fuel, Soot                 int
	Unignited, Burning, Spent  int
	FuelMass, SootMass, MaxTmp float64
}

// Collector decides which steps are sampled and turns a sample into StepStats.
type Collector struct {
	windowSteps int32

	// Current window tracking
	windowStartStep int32
	simTime         float64
}

// NewCollector creates a collector that samples every windowSteps steps.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{windowSteps: int32(windowSteps)}
}

// Advance accumulates simulated time for a completed step.
func (c *Collector) Advance(dt float64) {
	c.simTime += dt
}

// ShouldFlush returns true if enough steps have passed to sample again.
func (c *Collector) ShouldFlush(currentStep int32) bool {
	return currentStep-c.windowStartStep >= c.windowSteps
}

// Reset rewinds the window and the simulated clock.
func (c *Collector) Reset() {
	c.windowStartStep = 0
	c.simTime = 0
}

// Flush computes StepStats from the sample and starts the next window.
func (c *Collector) Flush(currentStep int32, dt float64, fields FieldSample, census ParticleCounts) StepStats {
	stats := StepStats{
		Step:    currentStep,
		SimTime: c.simTime,
		DT:      dt,

		Fuel:      census.Fuel,
		Soot:      census.Soot,
		Unignited: census.Unignited,
		Burning:   census.Burning,
		Spent:     census.Spent,
		FuelMass:  census.FuelMass,
		SootMass:  census.SootMass,
		MaxPartT:  census.MaxTmp,
	}

	if fields.Density != nil {
		stats.TotalDensity = Total(fields.Density)
		stats.NaNs += CountNonFinite(fields.Density)
	}
	if fields.Temperature != nil {
		stats.TotalTemperature = Total(fields.Temperature)
		summary := Summarize(fields.Temperature)
		stats.TempMean, stats.TempP90, stats.TempMax = summary.Mean, summary.P90, summary.Max
		stats.NaNs += CountNonFinite(fields.Temperature)
	}
	if fields.Velocity != nil {
		stats.MaxSpeed, stats.KineticEnergy = SpeedStats(fields.Velocity, fields.VelocityStride)
		stats.NaNs += CountNonFinite(fields.Velocity)
	}
	if fields.Divergence != nil {
		stats.MaxResidual = MaxAbs(fields.Divergence)
	}

	c.windowStartStep = currentStep
	return stats
}

// WindowSteps returns the number of steps per window.
func (c *Collector) WindowSteps() int32 {
	return c.windowSteps
}
