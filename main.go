package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/config"
	"github.com/pthm-cable/detonate/kernels"
	"github.com/pthm-cable/detonate/scene"
	"github.com/pthm-cable/detonate/sim"
	"github.com/pthm-cable/detonate/telemetry"
	"github.com/pthm-cable/detonate/volume"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	variantName := flag.String("variant", "smoke", "Simulation variant: smoke | explosion")
	steps := flag.Int("steps", 200, "Stop after N steps (0 = until interrupted)")
	frameDT := flag.Float64("frame-dt", 1.0/60.0, "Host frame time fed to each step when the time step is not fixed")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config snapshot and frames")
	dumpEvery := flag.Int("dump-every", -1, "Write an output frame every N steps (-1 = use config, 0 = never)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = disabled)")
	streamAddr := flag.String("stream-addr", "", "Stream output frames over websocket on this address (empty = disabled)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	variant, err := sim.ParseVariant(*variantName)
	if err != nil {
		slog.Error("invalid variant", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, variant, runOptions{
		steps:       *steps,
		frameDT:     *frameDT,
		seed:        *seed,
		outputDir:   *outputDir,
		dumpEvery:   *dumpEvery,
		metricsAddr: *metricsAddr,
		streamAddr:  *streamAddr,
		logStats:    *logStats,
	}); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	steps       int
	frameDT     float64
	seed        int64
	outputDir   string
	dumpEvery   int
	metricsAddr string
	streamAddr  string
	logStats    bool
}

func run(cfg *config.Config, variant sim.Variant, opts runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev := compute.NewCPUDevice(
		compute.WithMemoryBudget(cfg.Derived.MemoryBudgetBytes),
		compute.WithWorkers(cfg.Compute.Workers),
	)
	defer dev.Close()

	registry := scene.NewRegistry()
	colliders, err := populateScene(cfg, registry)
	if err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	if opts.metricsAddr != "" {
		metrics = telemetry.NewMetrics("detonate")
		serve(ctx, "metrics", opts.metricsAddr, metrics.Handler())
	}

	var hub *volume.Hub
	if opts.streamAddr != "" {
		hub = volume.NewHub()
		defer hub.Close()
		serve(ctx, "stream", opts.streamAddr, hub.Mux())
	}

	s, err := sim.New(dev, sim.UniformPrograms(kernels.NewProgram(dev)), cfg, variant, registry, sim.Options{
		Seed:      opts.seed,
		LogStats:  opts.logStats,
		OutputDir: opts.outputDir,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	s.TrackEmittersInBounds()
	for _, c := range colliders {
		s.TrackCollider(c)
	}

	every := cfg.Output.DumpEvery
	if opts.dumpEvery >= 0 {
		every = opts.dumpEvery
	}
	frames, err := volume.NewWriter(opts.outputDir, every)
	if err != nil {
		return err
	}

	slog.Info("starting simulation",
		"id", s.ID().String(),
		"variant", variant.String(),
		"steps", opts.steps,
		"emitters", len(s.TrackedEmitters()),
		"colliders", len(colliders),
		"allocated", humanize.Bytes(uint64(dev.Allocated())),
	)

	start := time.Now()
	for opts.steps <= 0 || int(s.Steps()) < opts.steps {
		if ctx.Err() != nil {
			slog.Info("interrupted", "step", s.Steps())
			break
		}
		if err := s.Step(opts.frameDT); err != nil {
			return err
		}
		if err := publishFrame(s, frames, hub); err != nil {
			return err
		}
	}

	n, written := frames.Written()
	slog.Info("simulation finished",
		"steps", s.Steps(),
		"elapsed", time.Since(start).String(),
		"perf", s.Perf().Stats(),
		"frames", n,
		"frame_bytes", humanize.Bytes(uint64(written)),
	)
	return nil
}

// populateScene registers the configured emitters and colliders. Collider
// handles are returned so the simulation can track them.
func populateScene(cfg *config.Config, registry *scene.Registry) ([]ecs.Entity, error) {
	for _, src := range cfg.Emitters.Sources {
		_, err := registry.AddEmitter(toVec3(src.Position), scene.Emitter{
			Radius:      float32(src.Radius),
			Density:     float32(src.Density),
			Temperature: float32(src.Temperature),
		})
		if err != nil {
			return nil, err
		}
	}
	var colliders []ecs.Entity
	for _, c := range cfg.Colliders {
		colliders = append(colliders, registry.AddCollider(toVec3(c.Position), float32(c.Radius), c.Container))
	}
	return colliders, nil
}

func toVec3(a [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(a[0]), float32(a[1]), float32(a[2])}
}

// publishFrame reads the output volume back when a dump is due or viewers
// are connected.
func publishFrame(s *sim.Simulation, frames *volume.Writer, hub *volume.Hub) error {
	due := frames.Due(s.Steps())
	streaming := hub != nil && hub.Viewers() > 0
	if !due && !streaming {
		return nil
	}

	data, size, err := s.ReadVolume()
	if err != nil {
		return err
	}
	f := &volume.Frame{
		RunID: s.ID().String(),
		Step:  s.Steps(),
		Grid:  s.OutputGrid().String(),
		Size:  [3]int{size.X, size.Y, size.Z},
		Data:  data,
	}
	if due {
		if _, err := frames.Write(f); err != nil {
			return err
		}
	}
	if streaming {
		return hub.BroadcastFrame(f)
	}
	return nil
}

func serve(ctx context.Context, name, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h}
	go func() {
		slog.Info("listening", "server", name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "server", name, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
}
