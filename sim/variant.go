package sim

import (
	"fmt"
	"strings"
)

// Variant selects which fluid the simulation models.
type Variant uint8

const (
	// Smoke carries a density field pushed around by emitters.
	Smoke Variant = iota
	// Explosion has no density; burning fuel particles feed heat and
	// expansion into the grid.
	Explosion
)

func (v Variant) String() string {
	switch v {
	case Smoke:
		return "smoke"
	case Explosion:
		return "explosion"
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// ParseVariant parses a variant name.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "smoke":
		return Smoke, nil
	case "explosion":
		return Explosion, nil
	}
	return 0, fmt.Errorf("unknown variant %q", name)
}

// strategy is the set of per-variant stage functions, chosen once in New.
type strategy struct {
	advect func(s *Simulation, dt float32) error
	forces func(s *Simulation, dt float32) error
	emit   func(s *Simulation, dt float32) error
	feed   func(s *Simulation, dt float32) error
	output func(s *Simulation) error
}

func strategyFor(v Variant) strategy {
	if v == Explosion {
		return strategy{
			advect: advectExplosion,
			forces: buoyancySimple,
			emit:   noop,
			feed:   feedParticles,
			output: outputExplosion,
		}
	}
	return strategy{
		advect: advectSmoke,
		forces: buoyancyDensity,
		emit:   emitSmoke,
		feed:   noop,
		output: outputSmoke,
	}
}

func noop(*Simulation, float32) error { return nil }

// OutputGrid selects the field converted into the output volume.
type OutputGrid uint8

const (
	GridDensity OutputGrid = iota
	GridObstacle
	GridTemperature
	GridPressure
	GridVelocity
)

func (g OutputGrid) String() string {
	switch g {
	case GridDensity:
		return "density"
	case GridObstacle:
		return "obstacle"
	case GridTemperature:
		return "temperature"
	case GridPressure:
		return "pressure"
	case GridVelocity:
		return "velocity"
	}
	return fmt.Sprintf("grid(%d)", uint8(g))
}

// ParseOutputGrid parses an output grid name.
func ParseOutputGrid(name string) (OutputGrid, error) {
	for g := GridDensity; g <= GridVelocity; g++ {
		if strings.EqualFold(name, g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown output grid %q", name)
}
