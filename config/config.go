// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/detonate/grid"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Smoke      SmokeConfig      `yaml:"smoke"`
	Explosion  ExplosionConfig  `yaml:"explosion"`
	Emitters   EmittersConfig   `yaml:"emitters"`
	Colliders  []ColliderConfig `yaml:"colliders"`
	Output     OutputConfig     `yaml:"output"`
	Compute    ComputeConfig    `yaml:"compute"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the grid and integration parameters shared by every variant.
type SimulationConfig struct {
	Width      int `yaml:"width"`      // Snapped to a power of two
	Height     int `yaml:"height"`     // Snapped to a power of two
	Depth      int `yaml:"depth"`      // Snapped to a power of two, forced to 1 when dims is 2
	Dims       int `yaml:"dims"`       // 2 or 3
	Iterations int `yaml:"iterations"` // Jacobi passes per step

	VelocityDissipation    float64 `yaml:"velocity_dissipation"`    // Per-step retention factor
	TemperatureDissipation float64 `yaml:"temperature_dissipation"` // Per-step retention factor
	DensityDissipation     float64 `yaml:"density_dissipation"`     // Per-step retention factor
	AmbientTemperature     float64 `yaml:"ambient_temperature"`

	SimulationBounds bool   `yaml:"simulation_bounds"` // Rasterise the outer shell as solid
	BoundaryPolicy   string `yaml:"boundary_policy"`   // reflect | zero

	FixedTimeStep   bool    `yaml:"fixed_time_step"`
	TimeStep        float64 `yaml:"time_step"`        // Used when fixed_time_step is set
	SimulationSpeed float64 `yaml:"simulation_speed"` // Frame dt multiplier otherwise
	CFLLimit        float64 `yaml:"cfl_limit"`        // Max cells per step; 0 disables the clamp

	Position [3]float64 `yaml:"position"` // World-space centre
	Scale    [3]float64 `yaml:"scale"`    // World-space extent
}

// SmokeConfig holds smoke-only forces.
type SmokeConfig struct {
	Buoyancy float64 `yaml:"buoyancy"`
	Weight   float64 `yaml:"weight"`
}

// ExplosionConfig holds the fuel particle and fluid-coupling parameters.
type ExplosionConfig struct {
	ParticleCount  int     `yaml:"particle_count"`
	ParticleRadius float64 `yaml:"particle_radius"`
	ParticleDrag   float64 `yaml:"particle_drag"`
	Mass           float64 `yaml:"mass"`      // Fuel particle start mass
	SootMass       float64 `yaml:"soot_mass"` // Soot particle mass
	ThermalMass    float64 `yaml:"thermal_mass"`

	DivergenceEffect float64 `yaml:"divergence_effect"` // Expansion per unit mass burned
	FluidDragEffect  float64 `yaml:"fluid_drag_effect"` // Extra velocity loss per step from particle drag
	FluidWeight      float64 `yaml:"fluid_weight"`      // Downward pull on particles per unit mass
	FluidBuoyancy    float64 `yaml:"fluid_buoyancy"`

	BurnThreshold       float64 `yaml:"burn_threshold"`
	BurnRate            float64 `yaml:"burn_rate"`
	HeatEmission        float64 `yaml:"heat_emission"`
	IgnitionTemperature float64 `yaml:"ignition_temperature"` // Fuel start temperature

	FusePosition  [3]float64 `yaml:"fuse_position"` // World space
	FuseRadius    float64    `yaml:"fuse_radius"`   // World space
	StartingNoise float64    `yaml:"starting_noise"`
	NoiseScale    float64    `yaml:"noise_scale"`

	TraceParticles   bool   `yaml:"trace_particles"`
	OutputResolution [3]int `yaml:"output_resolution"`
}

// EmitterConfig places one emitter.
type EmitterConfig struct {
	Position    [3]float64 `yaml:"position"`
	Radius      float64    `yaml:"radius"`
	Density     float64    `yaml:"density"`
	Temperature float64    `yaml:"temperature"`
}

// EmittersConfig holds emitter defaults and the emitters created at startup.
type EmittersConfig struct {
	Radius      float64         `yaml:"radius"`
	Density     float64         `yaml:"density"`
	Temperature float64         `yaml:"temperature"`
	Sources     []EmitterConfig `yaml:"sources"`
}

// ColliderConfig places one sphere collider.
type ColliderConfig struct {
	Position  [3]float64 `yaml:"position"`
	Radius    float64    `yaml:"radius"`
	Container bool       `yaml:"container"`
}

// OutputConfig selects what the volume output shows and where frames go.
type OutputConfig struct {
	Grid      string `yaml:"grid"`       // density | obstacle | temperature | pressure | velocity
	DumpEvery int    `yaml:"dump_every"` // Write a frame every N steps; 0 disables
}

// ComputeConfig sizes the CPU device.
type ComputeConfig struct {
	Workers        int   `yaml:"workers"`          // 0 uses GOMAXPROCS
	MemoryBudgetMB int64 `yaml:"memory_budget_mb"` // 0 is unlimited
}

// TelemetryConfig holds telemetry and instability detection parameters.
type TelemetryConfig struct {
	StatsWindow     int     `yaml:"stats_window"`     // Steps per stats sample
	PerfWindow      int     `yaml:"perf_window"`      // Steps in the rolling perf window
	HistoryWindow   int     `yaml:"history_window"`   // Samples kept by the instability detector
	DivergenceSpike float64 `yaml:"divergence_spike"` // Residual ratio over the rolling mean
	SpeedLimit      float64 `yaml:"speed_limit"`      // Cells per step
	CensusEvery     int     `yaml:"census_every"`     // Particle readback interval; 0 disables
	LogStats        bool    `yaml:"log_stats"`
}

// DerivedConfig holds values computed from other config values.
type DerivedConfig struct {
	DT32              float32
	Dims              int
	GridSize          grid.Size // Simulation dimensions after snapping
	MemoryBudgetBytes int64
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Simulation.TimeStep)

	c.Derived.Dims = c.Simulation.Dims
	if c.Derived.Dims != 2 {
		c.Derived.Dims = 3
	}
	if c.Simulation.Iterations < 0 {
		c.Simulation.Iterations = 0
	}
	if c.Simulation.SimulationSpeed <= 0 {
		c.Simulation.SimulationSpeed = 1
	}
	for i := range c.Simulation.Scale {
		if c.Simulation.Scale[i] == 0 {
			c.Simulation.Scale[i] = 1
		}
	}
	c.Derived.GridSize = grid.Snap(c.Simulation.Width, c.Simulation.Height, c.Simulation.Depth, c.Derived.Dims)
	snapped := [3]int{c.Derived.GridSize.X, c.Derived.GridSize.Y, c.Derived.GridSize.Z}
	for i, r := range c.Explosion.OutputResolution {
		if r <= 0 {
			c.Explosion.OutputResolution[i] = snapped[i]
		}
	}
	if c.Derived.Dims == 2 {
		c.Explosion.OutputResolution[2] = 1
	}

	// Emitters without their own settings take the defaults
	for i := range c.Emitters.Sources {
		src := &c.Emitters.Sources[i]
		if src.Radius == 0 {
			src.Radius = c.Emitters.Radius
		}
		if src.Density == 0 {
			src.Density = c.Emitters.Density
		}
		if src.Temperature == 0 {
			src.Temperature = c.Emitters.Temperature
		}
	}

	c.Derived.MemoryBudgetBytes = c.Compute.MemoryBudgetMB << 20
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
