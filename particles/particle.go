// Package particles drives the fuel and soot particles of an explosion.
// Particles live in a fixed-size device buffer; burnt-out particles stay in
// place and are only reported as spent.
package particles

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/compute"
)

// Particle is the host-side view of one particle record.
type Particle struct {
	Position    mgl32.Vec3 // cell units
	Velocity    mgl32.Vec3
	Temperature float32
	Mass        float32
	Soot        float32 // mass burned so far
}

// State is the burn state of a particle.
type State uint8

const (
	Unignited State = iota
	Burning
	Spent
)

func (s State) String() string {
	switch s {
	case Unignited:
		return "unignited"
	case Burning:
		return "burning"
	case Spent:
		return "spent"
	}
	return "unknown"
}

// StateOf classifies a particle against the burn threshold.
func StateOf(p Particle, burnThreshold float32) State {
	if p.Mass <= 0 {
		return Spent
	}
	if p.Temperature >= burnThreshold {
		return Burning
	}
	return Unignited
}

// Fuse describes where and how the charge starts.
type Fuse struct {
	Centre              mgl32.Vec3 // cell units
	Radius              float32    // cell units
	FuelMass            float32
	SootMass            float32
	IgnitionTemperature float32
}

// FuelCount returns the number of fuel particles in a buffer of n.
func FuelCount(n int) int { return n / 2 }

// Initial lays out n particles: the first n/2 are fuel scattered inside the
// fuse radius at the ignition temperature, the rest are soot at the centre.
func Initial(n int, fuse Fuse, rng *rand.Rand) []Particle {
	out := make([]Particle, n)
	fuel := FuelCount(n)
	for i := range out {
		if i < fuel {
			out[i] = Particle{
				Position:    fuse.Centre.Add(randomInSphere(rng).Mul(fuse.Radius)),
				Temperature: fuse.IgnitionTemperature,
				Mass:        fuse.FuelMass,
			}
			continue
		}
		out[i] = Particle{Position: fuse.Centre, Mass: fuse.SootMass}
	}
	return out
}

func randomInSphere(rng *rand.Rand) mgl32.Vec3 {
	for {
		v := mgl32.Vec3{
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
		}
		if v.LenSqr() <= 1 {
			return v
		}
	}
}

// Encode flattens particles into the device record layout.
func Encode(ps []Particle) []float32 {
	out := make([]float32, len(ps)*compute.StrideParticle)
	for i, p := range ps {
		r := out[i*compute.StrideParticle:]
		copy(r[compute.ParticlePosition:], p.Position[:])
		copy(r[compute.ParticleVelocity:], p.Velocity[:])
		r[compute.ParticleTemperature] = p.Temperature
		r[compute.ParticleMass] = p.Mass
		r[compute.ParticleSoot] = p.Soot
	}
	return out
}

// Decode reads device records back into particles.
func Decode(data []float32) []Particle {
	n := len(data) / compute.StrideParticle
	out := make([]Particle, n)
	for i := range out {
		r := data[i*compute.StrideParticle:]
		copy(out[i].Position[:], r[compute.ParticlePosition:compute.ParticlePosition+3])
		copy(out[i].Velocity[:], r[compute.ParticleVelocity:compute.ParticleVelocity+3])
		out[i].Temperature = r[compute.ParticleTemperature]
		out[i].Mass = r[compute.ParticleMass]
		out[i].Soot = r[compute.ParticleSoot]
	}
	return out
}

// Census summarises a particle readback.
type Census struct {
	Fuel      int
	Soot      int
	Unignited int
	Burning   int
	Spent     int
	FuelMass  float64
	SootMass  float64
	MaxTemp   float32
}

// Count classifies ps. The first FuelCount(len(ps)) records are fuel.
func Count(ps []Particle, burnThreshold float32) Census {
	var c Census
	fuel := FuelCount(len(ps))
	c.MaxTemp = float32(math.Inf(-1))
	for i, p := range ps {
		if i < fuel {
			c.Fuel++
			switch StateOf(p, burnThreshold) {
			case Unignited:
				c.Unignited++
			case Burning:
				c.Burning++
			case Spent:
				c.Spent++
			}
			c.FuelMass += float64(max(p.Mass, 0))
		} else {
			c.Soot++
		}
		c.SootMass += float64(p.Soot)
		c.MaxTemp = max(c.MaxTemp, p.Temperature)
	}
	if len(ps) == 0 {
		c.MaxTemp = 0
	}
	return c
}

// LogValue implements slog.LogValuer.
func (c Census) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("fuel", c.Fuel),
		slog.Int("soot", c.Soot),
		slog.Int("unignited", c.Unignited),
		slog.Int("burning", c.Burning),
		slog.Int("spent", c.Spent),
		slog.Float64("fuel_mass", c.FuelMass),
		slog.Float64("soot_mass", c.SootMass),
	)
}
