package kernels

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/compute"
)

// convertToVolume copies a field into the output texture. Vector fields are
// written as their magnitude.
func convertToVolume(iv *invocation) {
	srcBuf := iv.bindings[compute.BindReadR]
	src := srcBuf.Data()
	stride := srcBuf.Stride()
	tex := iv.buf(compute.BindWriteTex)
	if len(tex) < iv.size.Cells() {
		return
	}

	iv.forCells(func(x, y, z, i int) {
		if stride == 1 {
			tex[i] = src[i]
			return
		}
		var sum float32
		for c := 0; c < stride; c++ {
			v := src[i*stride+c]
			sum += v * v
		}
		tex[i] = sqrtf(sum)
	})
}

func clearVolume(iv *invocation) {
	tex := iv.buf(compute.BindWriteTex)
	iv.forCells(func(x, y, z, i int) {
		tex[i] = 0
	})
}

// particleToVolume accumulates each particle's mass and soot into the output
// texture cell nearest to it. Scatter writes run serially.
func particleToVolume(iv *invocation) {
	parts := iv.buf(compute.BindParticles)
	texBuf := iv.bindings[compute.BindWriteTex]
	tex := texBuf.Data()
	ts := iv.p.texSize(texBuf, iv.size)
	gs := iv.size.Vec3()
	scale := mgl32.Vec3{
		float32(ts.X) / gs.X(),
		float32(ts.Y) / gs.Y(),
		float32(ts.Z) / gs.Z(),
	}

	for n := 0; n < iv.n; n++ {
		rec := parts[n*compute.StrideParticle:]
		x := nearestCell(rec[compute.ParticlePosition], scale.X())
		y := nearestCell(rec[compute.ParticlePosition+1], scale.Y())
		z := nearestCell(rec[compute.ParticlePosition+2], scale.Z())
		if !ts.Contains(x, y, z) {
			continue
		}
		i := ts.Index(x, y, z)
		tex[i] += max(rec[compute.ParticleMass], 0) + rec[compute.ParticleSoot]
	}
}
