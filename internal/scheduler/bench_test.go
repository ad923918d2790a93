package scheduler

import (
	"math/rand/v2"
	"testing"

	"github.com/ChuLiYu/stepflow/internal/graph"
)

func benchGraph(n int) *graph.Graph[int] {
	return graph.New(randomDAG(rand.New(rand.NewPCG(42, 42)), n, 8.0/float64(n)))
}

func BenchmarkOrder(b *testing.B) {
	g := benchGraph(2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Order(g, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimulate(b *testing.B) {
	g := benchGraph(2000)
	cfg := Config[int]{Workers: 8, Duration: RankDuration(g.Tasks(), 0)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Simulate(g, cfg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDetectCycle(b *testing.B) {
	g := benchGraph(2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.DetectCycle()
	}
}
