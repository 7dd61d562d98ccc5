package sim

import "fmt"

func advectSmoke(s *Simulation, dt float32) error {
	g, c := s.grids, s.cfg.Simulation
	if err := s.advection.Scalar(dt, s.size, float32(c.TemperatureDissipation), g.Temperature, g.Velocity, g.Obstacles); err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	if err := s.advection.Scalar(dt, s.size, float32(c.DensityDissipation), g.Density, g.Velocity, g.Obstacles); err != nil {
		return fmt.Errorf("density: %w", err)
	}
	if err := s.advection.Velocity(dt, s.size, float32(c.VelocityDissipation), g.Velocity, g.Obstacles); err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	return nil
}

func buoyancyDensity(s *Simulation, dt float32) error {
	g := s.grids
	return s.buoyancy.Apply(dt, s.size,
		float32(s.cfg.Smoke.Buoyancy),
		float32(s.cfg.Smoke.Weight),
		float32(s.cfg.Simulation.AmbientTemperature),
		g.Velocity, g.Density, g.Temperature)
}

// emitSmoke injects density and temperature at every enabled tracked
// emitter. Dead emitters are dropped from the tracked list.
func emitSmoke(s *Simulation, dt float32) error {
	if s.registry == nil {
		return nil
	}
	snaps, kept := s.registry.Emitters(s.trackedEmitters)
	s.trackedEmitters = kept

	g := s.grids
	for _, e := range snaps {
		pos := s.ToGridSpace(e.Position)
		radius := s.RadiusToGrid(e.Radius)
		if err := s.impulse.Apply(dt, s.size, e.Density, radius, pos, g.Density); err != nil {
			return fmt.Errorf("density impulse: %w", err)
		}
		if err := s.impulse.Apply(dt, s.size, e.Temperature, radius, pos, g.Temperature); err != nil {
			return fmt.Errorf("temperature impulse: %w", err)
		}
	}
	return nil
}

func outputSmoke(s *Simulation) error {
	if s.output == GridDensity {
		s.lastVolume, s.lastVolumeSize = s.volume, s.size
		return s.out.ConvertToVolume(s.size, s.grids.Density.Read(), s.volume)
	}
	return outputField(s)
}

// outputField converts a non-density field at grid resolution.
func outputField(s *Simulation) error {
	src, err := s.fieldBuffer(s.output)
	if err != nil {
		return err
	}
	s.lastVolume, s.lastVolumeSize = s.volume, s.size
	return s.out.ConvertToVolume(s.size, src, s.volume)
}
