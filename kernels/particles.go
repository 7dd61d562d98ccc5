package kernels

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/compute"
)

const minParticleMass = 1e-4

func sqrtf(v float32) float32 { return float32(math.Sqrt(float64(v))) }

func expf(v float32) float32 { return float32(math.Exp(float64(v))) }

func particleAt(parts []float32, n int) []float32 {
	return parts[n*compute.StrideParticle : (n+1)*compute.StrideParticle]
}

// calculateParticlesVelocity relaxes each particle toward the local fluid
// velocity and temperature and applies buoyant lift along up. Heavier
// particles lag the flow more.
func calculateParticlesVelocity(iv *invocation) {
	parts := iv.buf(compute.BindParticles)
	vel := iv.buf(compute.BindVelocity)
	temp := iv.buf(compute.BindTemperature)
	dt := iv.float(compute.UniformDT)
	drag := iv.float(compute.UniformParticleDrag)
	radius := iv.float(compute.UniformParticleRadius)
	thermal := iv.float(compute.UniformThermalMass)
	lift := iv.float(compute.UniformBuoyancy)
	weight := iv.float(compute.UniformWeight)
	ambient := iv.float(compute.UniformAmbientTemperature)
	up := iv.vector(compute.UniformUp)
	s := iv.size

	heatGain := float32(1)
	if thermal > 0 {
		heatGain = 1 - expf(-dt/thermal)
	}

	iv.forParticles(func(n int) {
		rec := particleAt(parts, n)
		pos := mgl32.Vec3{rec[0], rec[1], rec[2]}
		v := mgl32.Vec3{rec[3], rec[4], rec[5]}

		u := velocityAt(vel, s, pos)
		t := sample(temp, 1, 0, s, pos.X(), pos.Y(), pos.Z())

		mass := max(rec[compute.ParticleMass], 0) + rec[compute.ParticleSoot]
		mass = max(mass, minParticleMass)
		rate := drag * radius * radius / mass
		v = u.Add(v.Sub(u).Mul(expf(-rate * dt)))
		v = v.Add(up.Mul(dt * (lift*(t-ambient) - weight*mass)))

		rec[3], rec[4], rec[5] = v[0], v[1], v[2]
		rec[compute.ParticleTemperature] += (t - rec[compute.ParticleTemperature]) * heatGain
	})
}

// applyParticlesVelocities integrates position with explicit Euler and keeps
// particles inside the grid.
func applyParticlesVelocities(iv *invocation) {
	parts := iv.buf(compute.BindParticles)
	dt := iv.float(compute.UniformDT)
	hi := iv.size.Vec3().Sub(mgl32.Vec3{1, 1, 1})

	iv.forParticles(func(n int) {
		rec := particleAt(parts, n)
		for c := 0; c < 3; c++ {
			rec[c] = clampf(rec[c]+rec[3+c]*dt, 0, hi[c])
		}
	})
}

// burnParticle consumes fuel from particles at or above the burn threshold.
// Burned mass becomes soot, heats the fluid cell, and writes expansion into
// the divergence field. The pressure solve cancels what the divergence field
// holds, so expansion is stored as a negative entry. Scatter writes run
// serially.
func burnParticle(iv *invocation) {
	parts := iv.buf(compute.BindParticles)
	temp := iv.buf(compute.BindTemperatureWrite)
	div := iv.buf(compute.BindDivergence)
	dt := iv.float(compute.UniformDT)
	rate := iv.float(compute.UniformBurnRate)
	heat := iv.float(compute.UniformProducedHeat)
	threshold := iv.float(compute.UniformBurnThreshold)
	expansion := iv.float(compute.UniformDivergenceAmount)
	s := iv.size

	for n := 0; n < iv.n; n++ {
		rec := particleAt(parts, n)
		mass := rec[compute.ParticleMass]
		if mass <= 0 || rec[compute.ParticleTemperature] < threshold {
			continue
		}
		burned := min(mass, rate*dt)
		rec[compute.ParticleMass] = mass - burned
		rec[compute.ParticleSoot] += burned
		rec[compute.ParticleTemperature] += heat * burned

		x := min(max(nearestCell(rec[0], 1), 0), s.X-1)
		y := min(max(nearestCell(rec[1], 1), 0), s.Y-1)
		z := min(max(nearestCell(rec[2], 1), 0), s.Z-1)
		i := s.Index(x, y, z)
		temp[i] += heat * burned
		div[i] -= expansion * burned
	}
}
