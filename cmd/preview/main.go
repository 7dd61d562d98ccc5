// Fluid preview tool - runs a simulation and shows the mid-depth slice of
// the output volume with sliders for the main forces.
//
// Usage: go run ./cmd/preview [-variant explosion] [-config path]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/config"
	"github.com/pthm-cable/detonate/kernels"
	"github.com/pthm-cable/detonate/scene"
	"github.com/pthm-cable/detonate/sim"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	variantName := flag.String("variant", "smoke", "Simulation variant: smoke | explosion")
	size := flag.Int("size", 64, "Grid resolution on each axis")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	cfg.Simulation.Width, cfg.Simulation.Height, cfg.Simulation.Depth = *size, *size, *size
	cfg.Explosion.OutputResolution = [3]int{*size, *size, *size}
	if cfg.Derived.Dims == 2 {
		cfg.Explosion.OutputResolution[2] = 1
	}

	variant, err := sim.ParseVariant(*variantName)
	if err != nil {
		slog.Error("invalid variant", "error", err)
		os.Exit(1)
	}

	dev := compute.NewCPUDevice(compute.WithWorkers(cfg.Compute.Workers))
	defer dev.Close()

	registry := scene.NewRegistry()
	var emitters []ecs.Entity
	for _, src := range cfg.Emitters.Sources {
		e, err := registry.AddEmitter(
			mgl32.Vec3{float32(src.Position[0]), float32(src.Position[1]), float32(src.Position[2])},
			scene.Emitter{Radius: float32(src.Radius), Density: float32(src.Density), Temperature: float32(src.Temperature)},
		)
		if err != nil {
			slog.Error("failed to add emitter", "error", err)
			os.Exit(1)
		}
		emitters = append(emitters, e)
	}

	s, err := sim.New(dev, sim.UniformPrograms(kernels.NewProgram(dev)), cfg, variant, registry, sim.Options{})
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}
	defer s.Close()
	s.TrackEmittersInBounds()

	emitterTemp := float32(cfg.Emitters.Temperature)
	if len(emitters) > 0 {
		emitterTemp = registry.Emitter(emitters[0]).Temperature
	}

	rl.InitWindow(windowWidth, windowHeight, "Fluid Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	_, volSize := s.Volume()
	img := rl.GenImageColor(volSize.X, volSize.Y, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer func() { rl.UnloadTexture(texture) }()

	running := true
	var lastErr error

	for !rl.WindowShouldClose() {
		if running && lastErr == nil {
			lastErr = s.Step(float64(rl.GetFrameTime()))
		}

		data, vs, err := s.ReadVolume()
		if err == nil {
			if vs != volSize {
				// Output resolution changed with the grid selection
				rl.UnloadTexture(texture)
				img := rl.GenImageColor(vs.X, vs.Y, rl.Black)
				texture = rl.LoadTextureFromImage(img)
				rl.UnloadImage(img)
				volSize = vs
			}
			rl.UpdateTexture(texture, colorize(sliceZ(data, vs, vs.Z/2)))
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(volSize.X), Height: float32(volSize.Y)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Step: %d  dt: %.4f  grid: %s", s.Steps(), s.LastDT(), s.Size()), 15, statsY, 16, rl.DarkGray)
		perf := s.Perf().Stats()
		rl.DrawText(fmt.Sprintf("Step time: %s  (%.0f steps/s)", perf.AvgStepDuration, perf.StepsPerSecond), 15, statsY+20, 16, rl.DarkGray)
		if lastErr != nil {
			rl.DrawText(lastErr.Error(), 15, statsY+45, 14, rl.Red)
		}

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText(fmt.Sprintf("%s: %s", s.Variant(), s.OutputGrid()), int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		// Buoyancy slider
		buoyancy := &cfg.Smoke.Buoyancy
		if variant == sim.Explosion {
			buoyancy = &cfg.Explosion.FluidBuoyancy
		}
		rl.DrawText("Buoyancy", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newBuoyancy := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0", "20",
			float32(*buoyancy), 0, 20,
		)
		rl.DrawText(fmt.Sprintf("%.2f", *buoyancy), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		*buoyancy = float64(newBuoyancy)
		panelY += 35

		// Emitter temperature slider
		rl.DrawText("Emitter temperature", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newTemp := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0", "50",
			emitterTemp, 0, 50,
		)
		rl.DrawText(fmt.Sprintf("%.1f", emitterTemp), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if newTemp != emitterTemp {
			emitterTemp = newTemp
			for _, e := range emitters {
				registry.Emitter(e).Temperature = emitterTemp
			}
		}
		panelY += 35

		// Jacobi iterations slider
		rl.DrawText("Pressure iterations", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newIters := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0", "80",
			float32(cfg.Simulation.Iterations), 0, 80,
		)
		rl.DrawText(fmt.Sprintf("%d", cfg.Simulation.Iterations), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		cfg.Simulation.Iterations = int(newIters + 0.5)
		panelY += 45

		// Buttons
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(running, "Pause", "Run")) {
			running = !running
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset") {
			if err := s.Reset(); err != nil {
				lastErr = err
			} else {
				lastErr = nil
			}
		}
		panelY += 40
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 250, Height: 30}, "Next output grid") {
			next := (s.OutputGrid() + 1) % (sim.GridVelocity + 1)
			if next == sim.GridDensity && variant == sim.Explosion && s.Particles() == nil {
				next++
			}
			s.SetOutputGrid(next)
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(fmt.Sprintf("smoke:\n  buoyancy: %.3f\nsimulation:\n  iterations: %d\nemitters:\n  temperature: %.1f",
				cfg.Smoke.Buoyancy, cfg.Simulation.Iterations, emitterTemp))
		}

		rl.EndDrawing()
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
