// Package sim runs a fluid simulation: it owns the grid set, wires the solver
// stages to their programs and advances everything one step at a time.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/config"
	"github.com/pthm-cable/detonate/grid"
	"github.com/pthm-cable/detonate/particles"
	"github.com/pthm-cable/detonate/scene"
	"github.com/pthm-cable/detonate/solver"
	"github.com/pthm-cable/detonate/telemetry"
)

// ErrClosed is returned when stepping a simulation after Close.
var ErrClosed = errors.New("sim: simulation closed")

// Options configures run-level behaviour.
type Options struct {
	Seed          int64  // RNG seed (0 = time-based)
	LogStats      bool   // Log stats and perf windows via slog
	OutputDir     string // CSV telemetry directory (empty = disabled)
	StatsWindow   int    // Steps per stats sample (0 = use config)
	Metrics       *telemetry.Metrics
	StatsCallback func(telemetry.StepStats)
}

// Simulation is one fluid volume.
type Simulation struct {
	id       uuid.UUID
	cfg      *config.Config
	variant  Variant
	strat    strategy
	dev      compute.Device
	registry *scene.Registry
	rng      *rand.Rand
	seed     int64

	// Fixed at allocation
	size   grid.Size
	policy solver.BoundaryPolicy
	output OutputGrid

	// Device state, released together
	grids          *grid.Set
	particles      *particles.Buffer
	volume         *compute.Buffer // grid resolution
	particleVolume *compute.Buffer // output resolution, explosions only
	texSize        grid.Size
	lastVolume     *compute.Buffer
	lastVolumeSize grid.Size

	// Stages
	obstacles  *solver.Obstacles
	advection  *solver.Advection
	buoyancy   *solver.Buoyancy
	impulse    *solver.Impulse
	divergence *solver.Divergence
	jacobi     *solver.Jacobi
	projection *solver.Projection
	out        *solver.Output
	burner     *particles.Module
	counters   []*compute.Recorder

	transform        Transform
	listeners        []func(Transform)
	trackedEmitters  []ecs.Entity
	trackedColliders []ecs.Entity

	step       int32
	lastDT     float32
	lastCensus telemetry.ParticleCounts

	// Telemetry
	perfCollector *telemetry.PerfCollector
	collector     *telemetry.Collector
	detector      *telemetry.InstabilityDetector
	outputManager *telemetry.OutputManager
	metrics       *telemetry.Metrics
	logStats      bool
	statsCallback func(telemetry.StepStats)
}

// New builds a simulation and allocates its device state. Allocation
// failure releases everything already allocated and is returned wrapped.
// The registry may be nil for a scene without emitters or colliders.
func New(dev compute.Device, programs Programs, cfg *config.Config, variant Variant, registry *scene.Registry, opts Options) (*Simulation, error) {
	policy, err := solver.ParseBoundaryPolicy(cfg.Simulation.BoundaryPolicy)
	if err != nil {
		return nil, err
	}
	outGrid, err := ParseOutputGrid(cfg.Output.Grid)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	for _, name := range programs.Missing() {
		slog.Warn("stage has no program, skipping", "stage", name, "variant", variant.String())
	}

	var counters []*compute.Recorder
	if opts.Metrics != nil {
		programs, counters = programs.counted()
	}

	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindow > 0 {
		statsWindow = opts.StatsWindow
	}

	s := &Simulation{
		id:       uuid.New(),
		cfg:      cfg,
		variant:  variant,
		strat:    strategyFor(variant),
		dev:      dev,
		registry: registry,
		rng:      rand.New(rand.NewSource(seed)),
		seed:     seed,
		policy:   policy,
		output:   outGrid,

		obstacles:  solver.NewObstacles(programs.Obstacles, dev),
		advection:  solver.NewAdvection(programs.Advection),
		buoyancy:   solver.NewBuoyancy(programs.Buoyancy),
		impulse:    solver.NewImpulse(programs.Impulse),
		divergence: solver.NewDivergence(programs.Divergence),
		jacobi:     solver.NewJacobi(programs.Jacobi, policy),
		projection: solver.NewProjection(programs.Projection),
		out:        solver.NewOutput(programs.Output),
		burner:     particles.NewModule(programs.Particles),
		counters:   counters,

		transform: Transform{
			Position: vec3(cfg.Simulation.Position),
			Scale:    sanitizeScale(vec3(cfg.Simulation.Scale)),
		},

		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		collector:     telemetry.NewCollector(statsWindow),
		detector: telemetry.NewInstabilityDetector(cfg.Telemetry.HistoryWindow,
			cfg.Telemetry.DivergenceSpike, cfg.Telemetry.SpeedLimit),
		metrics:       opts.Metrics,
		logStats:      opts.LogStats || cfg.Telemetry.LogStats,
		statsCallback: opts.StatsCallback,
	}

	if opts.OutputDir != "" {
		om, err := telemetry.NewOutputManager(opts.OutputDir)
		if err != nil {
			return nil, err
		}
		if err := om.WriteConfig(cfg); err != nil {
			om.Close()
			return nil, err
		}
		s.outputManager = om
	}

	if err := s.allocate(); err != nil {
		s.outputManager.Close()
		return nil, err
	}

	slog.Info("simulation created",
		"id", s.id.String(),
		"variant", variant.String(),
		"size", s.size.String(),
		"seed", seed,
		"policy", policy.String(),
		"output", outGrid.String(),
	)
	return s, nil
}

func vec3(a [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(a[0]), float32(a[1]), float32(a[2])}
}

// allocate creates the grid set and variant state. Dimensions are snapped
// here and stay fixed until the next Reset.
func (s *Simulation) allocate() error {
	c := s.cfg.Simulation
	s.size = grid.Snap(c.Width, c.Height, c.Depth, s.cfg.Derived.Dims)

	grids, err := grid.NewSet(s.dev, s.size, s.variant == Smoke)
	if err != nil {
		return fmt.Errorf("allocating grid set: %w", err)
	}
	s.grids = grids

	if s.volume, err = s.dev.NewBuffer(s.size.Cells(), compute.StrideScalar); err != nil {
		s.release()
		return fmt.Errorf("allocating output volume: %w", err)
	}
	s.lastVolume, s.lastVolumeSize = s.volume, s.size

	if s.variant == Explosion {
		if err := s.initExplosion(); err != nil {
			s.release()
			return err
		}
	}

	if c.SimulationBounds {
		if err := s.obstacles.SetBoundary(s.size, s.grids.Obstacles); err != nil {
			s.release()
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.SetAllocated(s.dev.Allocated())
	}
	return nil
}

// initExplosion allocates the particle buffer and output texture and seeds
// the velocity field with noise.
func (s *Simulation) initExplosion() error {
	e := s.cfg.Explosion

	r := e.OutputResolution
	s.texSize = grid.Size{X: max(r[0], 1), Y: max(r[1], 1), Z: max(r[2], 1)}
	var err error
	if s.particleVolume, err = s.dev.NewBuffer(s.texSize.Cells(), compute.StrideScalar); err != nil {
		return fmt.Errorf("allocating particle volume: %w", err)
	}

	if e.ParticleCount > 0 {
		fuse := particles.Fuse{
			Centre:              s.ToGridSpace(vec3(e.FusePosition)),
			Radius:              s.RadiusToGrid(float32(e.FuseRadius)),
			FuelMass:            float32(e.Mass),
			SootMass:            float32(e.SootMass),
			IgnitionTemperature: float32(e.IgnitionTemperature),
		}
		initial := particles.Initial(e.ParticleCount, fuse, s.rng)
		if s.particles, err = particles.NewBuffer(s.dev, initial); err != nil {
			return err
		}
	}

	return s.seedVelocityNoise()
}

// release frees every device buffer. Safe to call repeatedly.
func (s *Simulation) release() {
	s.grids.Release()
	s.grids = nil
	s.particles.Release()
	s.particles = nil
	for _, b := range []*compute.Buffer{s.volume, s.particleVolume} {
		if b != nil {
			s.dev.Release(b)
		}
	}
	s.volume, s.particleVolume, s.lastVolume = nil, nil, nil
}

// Reset destroys all device state and allocates it again from the config.
// The tracked emitter and collider lists survive a reset.
func (s *Simulation) Reset() error {
	s.release()
	s.step = 0
	s.lastDT = 0
	s.lastCensus = telemetry.ParticleCounts{}
	s.collector.Reset()
	s.detector.Reset()
	s.metrics.ObserveReset()

	if err := s.allocate(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.recordEvent(telemetry.Event{Type: telemetry.EventReset, Description: "simulation reset"})
	slog.Info("simulation reset", "id", s.id.String(), "size", s.size.String())
	return nil
}

// Close releases all device state and flushes telemetry output.
func (s *Simulation) Close() error {
	s.release()
	return s.outputManager.Close()
}

// ID returns the run identifier.
func (s *Simulation) ID() uuid.UUID { return s.id }

// Variant returns the simulation's variant.
func (s *Simulation) Variant() Variant { return s.variant }

// Size returns the snapped grid size.
func (s *Simulation) Size() grid.Size { return s.size }

// Steps returns the number of completed steps since start or reset.
func (s *Simulation) Steps() int32 { return s.step }

// LastDT returns the time step used by the last Step.
func (s *Simulation) LastDT() float32 { return s.lastDT }

// Seed returns the RNG seed in use.
func (s *Simulation) Seed() int64 { return s.seed }

// Grids exposes the grid set for diagnostics.
func (s *Simulation) Grids() *grid.Set { return s.grids }

// Particles exposes the particle buffer, nil for smoke.
func (s *Simulation) Particles() *particles.Buffer { return s.particles }

// Perf returns the step timing collector.
func (s *Simulation) Perf() *telemetry.PerfCollector { return s.perfCollector }

// OutputGrid returns the field shown in the output volume.
func (s *Simulation) OutputGrid() OutputGrid { return s.output }

// SetOutputGrid changes the field shown in the output volume.
func (s *Simulation) SetOutputGrid(g OutputGrid) { s.output = g }

// Step advances the simulation by one step. frameDT is the host frame time
// used when the config does not fix the time step.
func (s *Simulation) Step(frameDT float64) error {
	if s.grids == nil {
		return ErrClosed
	}
	dt, err := s.timeStep(frameDT)
	if err != nil {
		return err
	}

	start := time.Now()
	s.perfCollector.StartStep()
	err = s.runStages(dt)
	s.perfCollector.EndStep()
	if err != nil {
		return fmt.Errorf("step %d: %w", s.step, err)
	}

	s.step++
	s.lastDT = dt
	s.afterStep(dt, time.Since(start))
	return nil
}

func (s *Simulation) runStages(dt float32) error {
	g := s.grids

	s.perfCollector.StartPhase(telemetry.PhaseObstacles)
	if err := s.refreshObstacles(); err != nil {
		return fmt.Errorf("obstacles: %w", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseAdvect)
	if err := s.strat.advect(s, dt); err != nil {
		return fmt.Errorf("advect: %w", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseForces)
	if err := s.strat.forces(s, dt); err != nil {
		return fmt.Errorf("forces: %w", err)
	}
	if err := s.strat.emit(s, dt); err != nil {
		return fmt.Errorf("emit: %w", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseDivergence)
	if err := s.divergence.Compute(s.size, g.Velocity, g.Obstacles, g.Divergence); err != nil {
		return fmt.Errorf("divergence: %w", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseParticles)
	if err := s.strat.feed(s, dt); err != nil {
		return fmt.Errorf("particles: %w", err)
	}

	s.perfCollector.StartPhase(telemetry.PhasePressure)
	if err := s.jacobi.Solve(s.size, g.Divergence, g.Obstacles, s.cfg.Simulation.Iterations, g.Pressure); err != nil {
		return fmt.Errorf("pressure: %w", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseProjection)
	if err := s.projection.Project(s.size, g.Pressure, g.Obstacles, g.Velocity); err != nil {
		return fmt.Errorf("projection: %w", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseOutput)
	if err := s.strat.output(s); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// refreshObstacles rebuilds the obstacle field: clear, boundary, then the
// enabled colliders on top.
func (s *Simulation) refreshObstacles() error {
	field := s.grids.Obstacles
	if err := s.obstacles.Clear(field); err != nil {
		return err
	}
	if s.cfg.Simulation.SimulationBounds {
		if err := s.obstacles.SetBoundary(s.size, field); err != nil {
			return err
		}
	}
	if s.registry == nil {
		return nil
	}

	snaps, kept := s.registry.Colliders(s.trackedColliders)
	s.trackedColliders = kept
	for _, c := range snaps {
		centre := s.ToGridSpace(c.Position)
		if err := s.obstacles.AddSphere(s.size, centre, s.RadiusToGrid(c.Radius), c.Container, field); err != nil {
			return err
		}
	}
	return nil
}

// Volume returns the last converted output texture and its extent.
func (s *Simulation) Volume() (*compute.Buffer, grid.Size) {
	return s.lastVolume, s.lastVolumeSize
}

// ReadVolume reads the output texture back to the host. It blocks on queued
// work.
func (s *Simulation) ReadVolume() ([]float32, grid.Size, error) {
	if s.lastVolume == nil {
		return nil, grid.Size{}, ErrClosed
	}
	data := make([]float32, s.lastVolume.Len())
	if err := s.dev.ReadBack(s.lastVolume, data); err != nil {
		return nil, grid.Size{}, err
	}
	return data, s.lastVolumeSize, nil
}

// ReadField reads the current (READ) buffer of a field back to the host. It
// blocks on queued work. Density is unavailable for explosions.
func (s *Simulation) ReadField(g OutputGrid) ([]float32, error) {
	b, err := s.fieldBuffer(g)
	if err != nil {
		return nil, err
	}
	data := make([]float32, b.Len())
	if err := s.dev.ReadBack(b, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Simulation) fieldBuffer(g OutputGrid) (*compute.Buffer, error) {
	if s.grids == nil {
		return nil, ErrClosed
	}
	switch g {
	case GridDensity:
		if s.grids.Density == nil {
			return nil, fmt.Errorf("%s has no density field", s.variant)
		}
		return s.grids.Density.Read(), nil
	case GridObstacle:
		return s.grids.Obstacles.Buffer(), nil
	case GridTemperature:
		return s.grids.Temperature.Read(), nil
	case GridPressure:
		return s.grids.Pressure.Read(), nil
	case GridVelocity:
		return s.grids.Velocity.Read(), nil
	}
	return nil, fmt.Errorf("unknown output grid %d", g)
}

// Census reads the particles back and classifies them. Smoke returns an
// empty census.
func (s *Simulation) Census() (particles.Census, error) {
	if s.particles == nil {
		return particles.Census{}, nil
	}
	ps, err := s.particles.Snapshot()
	if err != nil {
		return particles.Census{}, err
	}
	return particles.Count(ps, float32(s.cfg.Explosion.BurnThreshold)), nil
}
