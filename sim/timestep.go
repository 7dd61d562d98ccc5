package sim

import (
	"fmt"

	"github.com/pthm-cable/detonate/telemetry"
)

// timeStep returns dt for the next step: the fixed step if configured,
// otherwise the frame time scaled by simulation_speed. With cfl_limit set,
// dt is clamped so the fastest cell moves at most cfl_limit cells.
func (s *Simulation) timeStep(frameDT float64) (float32, error) {
	c := s.cfg.Simulation
	dt := float32(frameDT * c.SimulationSpeed)
	if c.FixedTimeStep {
		dt = s.cfg.Derived.DT32
	}
	if c.CFLLimit <= 0 || dt <= 0 {
		return dt, nil
	}

	vel, err := s.ReadField(GridVelocity)
	if err != nil {
		return 0, fmt.Errorf("cfl readback: %w", err)
	}
	maxSpeed, _ := telemetry.SpeedStats(vel, 3)
	return clampCFL(dt, maxSpeed, c.CFLLimit), nil
}

func clampCFL(dt float32, maxSpeed, limit float64) float32 {
	if maxSpeed <= 0 || float64(dt)*maxSpeed <= limit {
		return dt
	}
	return float32(limit / maxSpeed)
}
