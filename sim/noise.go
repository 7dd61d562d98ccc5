package sim

import (
	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/detonate/compute"
)

// Each velocity component samples the noise at a different offset so the
// three are uncorrelated.
var noiseOffsets = [3]float64{0, 137.1, 311.7}

// seedVelocityNoise fills both velocity buffers with simplex noise scaled
// by starting_noise. Does nothing when starting_noise is zero.
func (s *Simulation) seedVelocityNoise() error {
	e := s.cfg.Explosion
	if e.StartingNoise == 0 {
		return nil
	}
	data := velocityNoise(s.size.X, s.size.Y, s.size.Z, e.NoiseScale, e.StartingNoise, s.seed)
	v := s.grids.Velocity
	if err := s.dev.Upload(v.Read(), data); err != nil {
		return err
	}
	return s.dev.Upload(v.Write(), data)
}

// velocityNoise returns an x-fastest vector field of w×h×d cells.
func velocityNoise(w, h, d int, scale, amplitude float64, seed int64) []float32 {
	noise := opensimplex.New(seed)
	out := make([]float32, w*h*d*compute.StrideVector)
	i := 0
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for c, off := range noiseOffsets {
					n := noise.Eval3(float64(x)*scale+off, float64(y)*scale, float64(z)*scale)
					out[i+c] = float32(n * amplitude)
				}
				i += compute.StrideVector
			}
		}
	}
	return out
}
