package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/detonate/config"
)

// formatDuration formats a duration as 1h02m03s, or 2m03s below an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// searchLog records every evaluation to CSV and keeps the best point seen.
// Nelder-Mead may end on a point worse than one it visited earlier.
type searchLog struct {
	w        *csv.Writer
	params   *ParamVector
	maxEvals int
	start    time.Time

	evals       int
	bestFitness float64
	bestParams  []float64
}

func newSearchLog(f *os.File, params *ParamVector, maxEvals int) *searchLog {
	w := csv.NewWriter(f)
	header := []string{"eval", "fitness", "centroid"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	w.Write(header)
	return &searchLog{
		w:           w,
		params:      params,
		maxEvals:    maxEvals,
		start:       time.Now(),
		bestFitness: failedFitness * 10,
	}
}

func (l *searchLog) record(values []float64, fitness, centroid float64) {
	l.evals++
	if fitness < l.bestFitness {
		l.bestFitness = fitness
		l.bestParams = values
	}

	row := []string{strconv.Itoa(l.evals), fmt.Sprintf("%.6f", fitness), fmt.Sprintf("%.4f", centroid)}
	for _, v := range values {
		row = append(row, fmt.Sprintf("%.6f", v))
	}
	l.w.Write(row)
	l.w.Flush()

	elapsed := time.Since(l.start)
	eta := time.Duration(l.maxEvals-l.evals) * (elapsed / time.Duration(l.evals))
	fmt.Printf("Eval %d/%d: centroid=%.3f fitness=%.5f (best=%.5f) | elapsed: %s, ETA: %s\n",
		l.evals, l.maxEvals, centroid, fitness, l.bestFitness, formatDuration(elapsed), formatDuration(eta))
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	steps := flag.Int("steps", 120, "Simulation steps per evaluation")
	target := flag.Float64("target", 0.7, "Target density centroid height in [0,1]")
	seeds := flag.Int("seeds", 2, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 80, "Maximum number of evaluations")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()

	params := NewParamVector()
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, *steps, *target, evalSeeds, baseCfg)

	logFile, err := os.Create(filepath.Join(*outputDir, "optimize_log.csv"))
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	searched := newSearchLog(logFile, params, *maxEvals)

	// The search runs in normalized space so one simplex size fits every
	// parameter. Seeds run in parallel inside each evaluation.
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(values)
			searched.record(values, fitness, evaluator.LastCentroid())
			return fitness
		},
	}
	settings := &optimize.Settings{FuncEvaluations: *maxEvals}
	method := &optimize.NelderMead{SimplexSize: 0.2}

	fmt.Printf("Starting Nelder-Mead search over %d parameters, max_evals=%d, target=%.2f\n",
		params.Dim(), *maxEvals, *target)
	fmt.Printf("Seeds per evaluation: %d, steps per run: %d\n", *seeds, *steps)

	result, err := optimize.Minimize(problem, params.Normalize(params.ExtractFromConfig(baseCfg)), settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	best := searched.bestParams
	if best == nil {
		if result == nil {
			log.Fatal("no evaluations completed")
		}
		best = params.Clamp(params.Denormalize(result.X))
	}

	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", searched.evals, formatDuration(time.Since(searched.start)))
	fmt.Printf("Best fitness: %.5f\n", searched.bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, best[i])
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, best)

	out := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(out); err != nil {
		log.Fatalf("failed to write best config: %v", err)
	}
	fmt.Printf("\nBest config saved to: %s\n", out)
}
