// Package dataset provides the local training data participants feed into
// the federated trainer.
package dataset

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"sync"

	"github.com/absmach/siteguard/pkg/fl"
)

const (
	DefSamples = 50
	DefNoise   = 0.05
)

var ErrNoDataset = errors.New("no dataset for project")

// kpiWeights relate the six construction KPIs to the synthetic label.
var kpiWeights = [fl.DefaultInputDim]float64{0.1, 0.2, 0.15, 0.25, 0.2, 0.1}

var (
	_ fl.DatasetProvider = (*Synthetic)(nil)
	_ fl.DatasetProvider = (*Memory)(nil)
)

// Synthetic generates a reproducible dataset per project: six uniform KPI
// features and a weighted-sum label with bounded noise.
type Synthetic struct {
	samples int
	noise   float64
	seed    uint64
}

func NewSynthetic(samples int, noise float64, seed uint64) *Synthetic {
	if samples <= 0 {
		samples = DefSamples
	}
	if noise < 0 {
		noise = DefNoise
	}

	return &Synthetic{
		samples: samples,
		noise:   noise,
		seed:    seed,
	}
}

func (s *Synthetic) Dataset(ctx context.Context, projectID string) ([]fl.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(projectID))
	rng := rand.New(rand.NewPCG(s.seed, h.Sum64()))

	out := make([]fl.Sample, s.samples)
	for i := range out {
		features := make([]float64, len(kpiWeights))
		var label float64
		for j, w := range kpiWeights {
			features[j] = rng.Float64()
			label += features[j] * w
		}
		label += (rng.Float64()*2 - 1) * s.noise
		out[i] = fl.Sample{Features: features, Label: label}
	}

	return out, nil
}

// Memory serves datasets registered per project.
type Memory struct {
	mu       sync.RWMutex
	datasets map[string][]fl.Sample
}

func NewMemory() *Memory {
	return &Memory{
		datasets: make(map[string][]fl.Sample),
	}
}

func (m *Memory) Put(projectID string, samples []fl.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.datasets[projectID] = append([]fl.Sample{}, samples...)
}

func (m *Memory) Dataset(_ context.Context, projectID string) ([]fl.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	samples, ok := m.datasets[projectID]
	if !ok || len(samples) == 0 {
		return nil, ErrNoDataset
	}

	return append([]fl.Sample{}, samples...), nil
}
