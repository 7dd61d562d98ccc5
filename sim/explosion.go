package sim

import (
	"fmt"

	"github.com/pthm-cable/detonate/particles"
)

// advectExplosion moves temperature and velocity. Particle drag bleeds
// extra momentum out of the fluid through fluid_drag_effect.
func advectExplosion(s *Simulation, dt float32) error {
	g, c := s.grids, s.cfg.Simulation
	if err := s.advection.Scalar(dt, s.size, float32(c.TemperatureDissipation), g.Temperature, g.Velocity, g.Obstacles); err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	diss := float32(c.VelocityDissipation * (1 - s.cfg.Explosion.FluidDragEffect))
	if err := s.advection.Velocity(dt, s.size, diss, g.Velocity, g.Obstacles); err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	return nil
}

func buoyancySimple(s *Simulation, dt float32) error {
	return s.buoyancy.ApplySimple(dt, s.size,
		float32(s.cfg.Explosion.FluidBuoyancy),
		float32(s.cfg.Simulation.AmbientTemperature),
		s.grids.Velocity, s.grids.Temperature)
}

// feedParticles couples the particles to the fluid and burns fuel into the
// temperature and divergence fields, ahead of the pressure solve.
func feedParticles(s *Simulation, dt float32) error {
	ps := s.particles
	if ps == nil {
		return nil
	}
	e := s.cfg.Explosion
	g := s.grids

	vel := particles.VelocityParams{
		Drag:        float32(e.ParticleDrag),
		Radius:      float32(e.ParticleRadius),
		ThermalMass: float32(e.ThermalMass),
		Lift:        float32(e.FluidBuoyancy),
		Weight:      float32(e.FluidWeight),
		Ambient:     float32(s.cfg.Simulation.AmbientTemperature),
	}
	if err := s.burner.UpdateVelocity(ps, g.Temperature, g.Velocity, vel, dt, s.size); err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	if err := s.burner.UpdatePosition(ps, dt, s.size); err != nil {
		return fmt.Errorf("position: %w", err)
	}

	burn := particles.BurnParams{
		Rate:       float32(e.BurnRate),
		Heat:       float32(e.HeatEmission),
		Threshold:  float32(e.BurnThreshold),
		Divergence: float32(e.DivergenceEffect),
	}
	if err := s.burner.Burn(ps, g.Temperature.Read(), g.Divergence, burn, dt, s.size); err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	return nil
}

// outputExplosion splats particles into the output-resolution texture when
// density is selected. Other fields convert at grid resolution.
func outputExplosion(s *Simulation) error {
	if s.output != GridDensity {
		return outputField(s)
	}
	s.lastVolume, s.lastVolumeSize = s.particleVolume, s.texSize
	if s.particles == nil {
		return nil
	}
	return s.out.ParticlesToVolume(s.size, s.particles.Device(), s.particles.Count(),
		s.particleVolume, s.texSize, s.cfg.Explosion.TraceParticles)
}
