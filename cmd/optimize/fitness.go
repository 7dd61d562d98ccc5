package main

import (
	"log/slog"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/config"
	"github.com/pthm-cable/detonate/grid"
	"github.com/pthm-cable/detonate/kernels"
	"github.com/pthm-cable/detonate/scene"
	"github.com/pthm-cable/detonate/sim"
	"github.com/pthm-cable/detonate/telemetry"
)

// Fitness returned for runs that blow up or lose all their density.
const failedFitness = 1e3

// FitnessEvaluator runs headless smoke simulations and scores how close the
// density centroid ends up to a target height.
type FitnessEvaluator struct {
	params     *ParamVector
	steps      int
	target     float64 // normalized height in [0,1]
	seeds      []int64
	baseConfig *config.Config

	mu           sync.Mutex
	lastCentroid float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, steps int, target float64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		steps:      steps,
		target:     target,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastCentroid returns the mean centroid height of the most recent evaluation.
func (fe *FitnessEvaluator) LastCentroid() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastCentroid
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]float64, len(fe.seeds))
	centroids := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			centroid, err := fe.runSimulation(x, s)
			if err != nil || math.IsNaN(centroid) {
				slog.Warn("evaluation failed", "seed", s, "error", err)
				results[idx] = failedFitness
				centroids[idx] = math.NaN()
				return
			}
			d := centroid - fe.target
			results[idx] = d * d
			centroids[idx] = centroid
		}(i, seed)
	}
	wg.Wait()

	fe.mu.Lock()
	fe.lastCentroid = floats.Sum(centroids) / float64(len(centroids))
	fe.mu.Unlock()

	return floats.Sum(results) / float64(len(results))
}

// runSimulation runs one seed and returns the density centroid height.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) (float64, error) {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	dev := compute.NewCPUDevice(compute.WithWorkers(1))
	defer dev.Close()

	registry := scene.NewRegistry()
	for _, src := range cfg.Emitters.Sources {
		pos := src.Position
		if _, err := registry.AddEmitter(
			mgl32.Vec3{float32(pos[0]), float32(pos[1]), float32(pos[2])},
			scene.Emitter{Radius: float32(src.Radius), Density: float32(src.Density), Temperature: float32(src.Temperature)},
		); err != nil {
			return 0, err
		}
	}

	s, err := sim.New(dev, sim.UniformPrograms(kernels.NewProgram(dev)), cfg, sim.Smoke, registry, sim.Options{Seed: seed})
	if err != nil {
		return 0, err
	}
	defer s.Close()
	s.TrackEmittersInBounds()

	for i := 0; i < fe.steps; i++ {
		if err := s.Step(0); err != nil {
			return 0, err
		}
	}

	density, err := s.ReadField(sim.GridDensity)
	if err != nil {
		return 0, err
	}
	if telemetry.CountNonFinite(density) > 0 {
		return math.NaN(), nil
	}
	return centroidHeight(density, s.Size()), nil
}

// centroidHeight returns the density-weighted mean cell height normalized to
// [0,1], or NaN when the field holds no density.
func centroidHeight(density []float32, size grid.Size) float64 {
	weights := make([]float64, len(density))
	heights := make([]float64, len(density))
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				i := size.Index(x, y, z)
				weights[i] = math.Max(float64(density[i]), 0)
				heights[i] = (float64(y) + 0.5) / float64(size.Y)
			}
		}
	}
	total := floats.Sum(weights)
	if total <= 1e-9 {
		return math.NaN()
	}
	return floats.Dot(weights, heights) / total
}

// copyConfig returns a shallow copy of the base config with its own emitter
// list.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Emitters.Sources = append([]config.EmitterConfig(nil), fe.baseConfig.Emitters.Sources...)
	cfg.Simulation.FixedTimeStep = true
	return &cfg
}
