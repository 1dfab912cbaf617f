package dataset_test

import (
	"context"
	"errors"
	"testing"

	"github.com/absmach/siteguard/pkg/dataset"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticIsReproducible(t *testing.T) {
	ctx := context.Background()
	p := dataset.NewSynthetic(20, 0.05, 7)

	first, err := p.Dataset(ctx, "project-1")
	require.NoError(t, err)
	second, err := p.Dataset(ctx, "project-1")
	require.NoError(t, err)
	other, err := p.Dataset(ctx, "project-2")
	require.NoError(t, err)

	assert.Len(t, first, 20)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	for _, s := range first {
		assert.Len(t, s.Features, fl.DefaultInputDim)
		for _, f := range s.Features {
			assert.GreaterOrEqual(t, f, 0.0)
			assert.Less(t, f, 1.0)
		}
	}
}

func TestSyntheticDefaults(t *testing.T) {
	samples, err := dataset.NewSynthetic(0, -1, 0).Dataset(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, samples, dataset.DefSamples)
}

func TestMemory(t *testing.T) {
	m := dataset.NewMemory()
	m.Put("p", []fl.Sample{{Features: []float64{1}, Label: 2}})

	samples, err := m.Dataset(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []fl.Sample{{Features: []float64{1}, Label: 2}}, samples)

	_, err = m.Dataset(context.Background(), "missing")
	assert.ErrorIs(t, err, dataset.ErrNoDataset)
}

func TestHazardSignal(t *testing.T) {
	cases := []struct {
		desc    string
		hazards []string
		signal  float64
	}{
		{desc: "no hazards", signal: 0},
		{desc: "single high", hazards: []string{"HIGH"}, signal: 1},
		{desc: "mixed levels", hazards: []string{"LOW", "medium", "HIGH"}, signal: 0.6},
		{desc: "unknown level", hazards: []string{"UNKNOWN", "LOW"}, signal: 0.1},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, tc.signal, dataset.HazardSignal(tc.hazards), 1e-12)
		})
	}
}

type staticSource map[string][]dataset.Assessment

func (s staticSource) Assessments(_ context.Context, projectID string) ([]dataset.Assessment, error) {
	if projectID == "broken" {
		return nil, errors.New("source unavailable")
	}

	return s[projectID], nil
}

func TestAssessments(t *testing.T) {
	src := staticSource{
		"p": {{Score: 0.8, Compliance: 0.5, Structural: 0.4, Materials: 0.3, Financial: 0.2, Inspections: 0.1, Hazards: []string{"HIGH"}}},
	}
	p := dataset.NewAssessments(src)

	samples, err := p.Dataset(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, []float64{1, 0.5, 0.4, 0.3, 0.2, 0.1}, samples[0].Features)
	assert.Equal(t, 0.8, samples[0].Label)

	_, err = p.Dataset(context.Background(), "empty")
	assert.ErrorIs(t, err, dataset.ErrNoDataset)

	_, err = p.Dataset(context.Background(), "broken")
	assert.Error(t, err)
}
