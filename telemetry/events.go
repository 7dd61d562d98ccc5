// Package telemetry provides step statistics, timing, instability detection and
// CSV output for simulation runs.
package telemetry

import (
	"context"
	"log/slog"
)

// EventType identifies telemetry events.
type EventType string

const (
	EventNonFinite       EventType = "non_finite"
	EventDivergenceSpike EventType = "divergence_spike"
	EventSpeedLimit      EventType = "speed_limit"
	EventIgnition        EventType = "ignition"
	EventBurnout         EventType = "burnout"
	EventReset           EventType = "reset"
)

// Event is a notable moment in a run.
type Event struct {
	Type        EventType `csv:"type"`
	Step        int32     `csv:"step"`
	Value       float64   `csv:"value"`
	Description string    `csv:"description"`
}

// Warning reports whether the event indicates the solver is going unstable.
func (e Event) Warning() bool {
	switch e.Type {
	case EventNonFinite, EventDivergenceSpike, EventSpeedLimit:
		return true
	}
	return false
}

// LogEvent logs the event using slog.
func (e Event) LogEvent() {
	level := slog.LevelInfo
	if e.Warning() {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "event",
		"type", string(e.Type),
		"step", e.Step,
		"value", e.Value,
		"description", e.Description,
	)
}
