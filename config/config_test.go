package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Simulation.Width != 128 || cfg.Simulation.Iterations != 10 {
		t.Errorf("grid = %d, iterations = %d, want 128, 10", cfg.Simulation.Width, cfg.Simulation.Iterations)
	}
	if cfg.Simulation.VelocityDissipation != 0.995 {
		t.Errorf("velocity_dissipation = %f, want 0.995", cfg.Simulation.VelocityDissipation)
	}
	if cfg.Explosion.ParticleCount != 200 {
		t.Errorf("particle_count = %d, want 200", cfg.Explosion.ParticleCount)
	}
	if cfg.Derived.DT32 != 0.1 {
		t.Errorf("DT32 = %f, want 0.1", cfg.Derived.DT32)
	}
	if cfg.Derived.Dims != 3 {
		t.Errorf("Dims = %d, want 3", cfg.Derived.Dims)
	}
	if cfg.Explosion.OutputResolution != [3]int{128, 128, 128} {
		t.Errorf("output_resolution = %v, want grid size", cfg.Explosion.OutputResolution)
	}
	if len(cfg.Emitters.Sources) != 1 || cfg.Emitters.Sources[0].Temperature != 10 {
		t.Errorf("emitter sources = %+v, want one source with default temperature", cfg.Emitters.Sources)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.yaml")
	user := []byte("simulation:\n  width: 64\n  dims: 2\nsmoke:\n  buoyancy: 2.5\n")
	if err := os.WriteFile(path, user, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.Width != 64 {
		t.Errorf("width = %d, want 64", cfg.Simulation.Width)
	}
	if cfg.Simulation.Height != 128 {
		t.Errorf("height = %d, want default 128", cfg.Simulation.Height)
	}
	if cfg.Smoke.Buoyancy != 2.5 || cfg.Smoke.Weight != 0.0125 {
		t.Errorf("smoke = %+v, want buoyancy 2.5 and default weight", cfg.Smoke)
	}
	if cfg.Derived.Dims != 2 || cfg.Explosion.OutputResolution[2] != 1 {
		t.Errorf("dims %d, output depth %d, want 2 and 1", cfg.Derived.Dims, cfg.Explosion.OutputResolution[2])
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Simulation.Iterations = 33

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Simulation.Iterations != 33 {
		t.Errorf("iterations = %d, want 33", back.Simulation.Iterations)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestOutputResolutionDefaultsToSnappedGrid(t *testing.T) {
	tests := []struct {
		name string
		user string
		want [3]int
	}{
		{"snapped 3d", "simulation:\n  width: 100\n  height: 30\n  depth: 16\n", [3]int{128, 32, 16}},
		{"snapped 2d", "simulation:\n  width: 50\n  height: 200\n  dims: 2\n", [3]int{64, 256, 1}},
		{"explicit kept", "simulation:\n  width: 100\nexplosion:\n  output_resolution: [32, 0, 8]\n", [3]int{32, 128, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "user.yaml")
			if err := os.WriteFile(path, []byte(tt.user), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Explosion.OutputResolution != tt.want {
				t.Errorf("output_resolution = %v, want %v", cfg.Explosion.OutputResolution, tt.want)
			}
			g := cfg.Derived.GridSize
			if tt.name != "explicit kept" && [3]int{g.X, g.Y, g.Z} != tt.want {
				t.Errorf("grid size = %v, want %v", g, tt.want)
			}
		})
	}
}
