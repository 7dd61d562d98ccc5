package telemetry

import (
	"testing"

	"gonum.org/v1/gonum/blas/blas32"
)

// A 64³ scalar field
const benchCells = 64 * 64 * 64

func benchField() []float32 {
	data := make([]float32, benchCells)
	for i := range data {
		data[i] = float32(i%97) * 0.01
	}
	return data
}

// Benchmark sum with scalar loop
func BenchmarkSumScalar(b *testing.B) {
	data := benchField()

	b.ResetTimer()
	var total float32
	for n := 0; n < b.N; n++ {
		total = 0
		for _, v := range data {
			total += v
		}
	}
	_ = total
}

// Benchmark sum with blas32.Asum (works for non-negative values)
func BenchmarkSumBLAS(b *testing.B) {
	data := benchField()
	v := blas32.Vector{N: len(data), Inc: 1, Data: data}

	b.ResetTimer()
	var total float32
	for n := 0; n < b.N; n++ {
		total = blas32.Asum(v)
	}
	_ = total
}

func BenchmarkTotal(b *testing.B) {
	data := benchField()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		Total(data)
	}
}

func BenchmarkSpeedStats(b *testing.B) {
	data := make([]float32, benchCells*3)
	for i := range data {
		data[i] = float32(i%13) * 0.1
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		SpeedStats(data, 3)
	}
}

func BenchmarkSummarize(b *testing.B) {
	data := benchField()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		Summarize(data)
	}
}
