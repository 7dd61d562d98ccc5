package telemetry

import (
	"fmt"
)

// InstabilityDetector watches sampled step stats for signs that the solver is
// blowing up and for the explosion lifecycle milestones.
type InstabilityDetector struct {
	// Rolling history (circular buffer)
	history     []StepStats
	historySize int
	historyIdx  int
	historyFull bool

	spikeRatio float64 // residual over rolling mean that counts as a spike
	speedLimit float64 // cells per step; 0 disables

	// State tracking
	reportedNonFinite bool
	overSpeed         bool
	ignited           bool
	burnedOut         bool
}

// NewInstabilityDetector creates a detector with the given history size.
func NewInstabilityDetector(historySize int, spikeRatio, speedLimit float64) *InstabilityDetector {
	if historySize < 3 {
		historySize = 3
	}
	if spikeRatio <= 1 {
		spikeRatio = 8
	}
	return &InstabilityDetector{
		history:     make([]StepStats, historySize),
		historySize: historySize,
		spikeRatio:  spikeRatio,
		speedLimit:  speedLimit,
	}
}

// Check analyzes the latest stats and returns any triggered events.
func (d *InstabilityDetector) Check(stats StepStats) []Event {
	var events []Event

	if e := d.checkNonFinite(stats); e != nil {
		events = append(events, *e)
	}
	if e := d.checkDivergenceSpike(stats); e != nil {
		events = append(events, *e)
	}
	if e := d.checkSpeed(stats); e != nil {
		events = append(events, *e)
	}
	if e := d.checkIgnition(stats); e != nil {
		events = append(events, *e)
	}
	if e := d.checkBurnout(stats); e != nil {
		events = append(events, *e)
	}

	d.addToHistory(stats)
	return events
}

// Reset clears history and lifecycle state, e.g. after the simulation resets.
func (d *InstabilityDetector) Reset() {
	d.historyIdx = 0
	d.historyFull = false
	d.reportedNonFinite = false
	d.overSpeed = false
	d.ignited = false
	d.burnedOut = false
}

func (d *InstabilityDetector) addToHistory(stats StepStats) {
	d.history[d.historyIdx] = stats
	d.historyIdx = (d.historyIdx + 1) % d.historySize
	if d.historyIdx == 0 {
		d.historyFull = true
	}
}

func (d *InstabilityDetector) getHistory() []StepStats {
	if d.historyFull {
		return d.history
	}
	return d.history[:d.historyIdx]
}

// checkNonFinite reports the first sample holding NaN or Inf.
func (d *InstabilityDetector) checkNonFinite(stats StepStats) *Event {
	if stats.NaNs == 0 || d.reportedNonFinite {
		return nil
	}
	d.reportedNonFinite = true
	return &Event{
		Type:        EventNonFinite,
		Step:        stats.Step,
		Value:       float64(stats.NaNs),
		Description: fmt.Sprintf("%d non-finite field entries", stats.NaNs),
	}
}

func (d *InstabilityDetector) checkDivergenceSpike(stats StepStats) *Event {
	history := d.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.MaxResidual
	}
	avg := total / float64(len(history))
	if avg <= 1e-6 {
		return nil
	}

	if stats.MaxResidual > avg*d.spikeRatio {
		return &Event{
			Type:        EventDivergenceSpike,
			Step:        stats.Step,
			Value:       stats.MaxResidual,
			Description: fmt.Sprintf("Residual %.4f is %.1fx average (%.4f)", stats.MaxResidual, stats.MaxResidual/avg, avg),
		}
	}
	return nil
}

// checkSpeed fires when the flow first exceeds the limit and re-arms once it
// drops back under it.
func (d *InstabilityDetector) checkSpeed(stats StepStats) *Event {
	if d.speedLimit <= 0 {
		return nil
	}
	cellsPerStep := stats.MaxSpeed * stats.DT
	if cellsPerStep <= d.speedLimit {
		d.overSpeed = false
		return nil
	}
	if d.overSpeed {
		return nil
	}
	d.overSpeed = true
	return &Event{
		Type:        EventSpeedLimit,
		Step:        stats.Step,
		Value:       cellsPerStep,
		Description: fmt.Sprintf("Flow moves %.2f cells per step, limit %.2f", cellsPerStep, d.speedLimit),
	}
}

func (d *InstabilityDetector) checkIgnition(stats StepStats) *Event {
	if d.ignited || stats.Burning == 0 {
		return nil
	}
	d.ignited = true
	return &Event{
		Type:        EventIgnition,
		Step:        stats.Step,
		Value:       float64(stats.Burning),
		Description: fmt.Sprintf("%d of %d fuel particles burning", stats.Burning, stats.Fuel),
	}
}

func (d *InstabilityDetector) checkBurnout(stats StepStats) *Event {
	if !d.ignited || d.burnedOut || stats.Fuel == 0 || stats.Spent < stats.Fuel {
		return nil
	}
	d.burnedOut = true
	return &Event{
		Type:        EventBurnout,
		Step:        stats.Step,
		Value:       stats.SootMass,
		Description: fmt.Sprintf("All %d fuel particles spent", stats.Fuel),
	}
}
