package fl_test

import (
	"math/rand/v2"
	"testing"

	"github.com/absmach/siteguard/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLinearModel(t *testing.T) {
	m, err := fl.NewLinearModel(fl.DefaultArchitecture(), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, fl.DefaultInputDim, m.InputDim())
	assert.Equal(t, fl.DefaultOutputDim, m.OutputDim())

	w := m.Weights()
	assert.Equal(t, []int{1, 6}, w[fl.WeightLayer].Shape())
	assert.Equal(t, []int{1}, w[fl.BiasLayer].Shape())

	bound := 1 / 2.449489742783178
	for _, v := range w[fl.WeightLayer].Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}

	_, err = fl.NewLinearModel(fl.Architecture{Kind: fl.LinearKind}, rand.New(rand.NewPCG(1, 2)))
	assert.ErrorIs(t, err, fl.ErrUnsupportedModel)
}

func TestModelFromSnapshot(t *testing.T) {
	weight, err := fl.Matrix([][]float64{{1, 2, 3}})
	require.NoError(t, err)
	nested, err := fl.Matrix([][]float64{{1, 1}})
	require.NoError(t, err)

	cases := []struct {
		desc     string
		model    fl.GlobalModel
		input    []float64
		output   float64
		inputDim int
		err      error
	}{
		{
			desc: "persisted architecture",
			model: fl.GlobalModel{
				Architecture: fl.Architecture{Kind: fl.LinearKind, InputDim: 3, OutputDim: 1},
				Weights:      fl.Weights{fl.WeightLayer: weight, fl.BiasLayer: fl.Vector(0.5)},
			},
			input:    []float64{1, 1, 1},
			output:   6.5,
			inputDim: 3,
		},
		{
			desc: "architecture disagrees with weights",
			model: fl.GlobalModel{
				Architecture: fl.Architecture{Kind: fl.LinearKind, InputDim: 6, OutputDim: 1},
				Weights:      fl.Weights{fl.WeightLayer: weight},
			},
			err: fl.ErrShapeMismatch,
		},
		{
			desc: "canonical layers without architecture",
			model: fl.GlobalModel{
				Weights: fl.Weights{fl.WeightLayer: weight},
			},
			input:    []float64{1, 0, 0},
			output:   1,
			inputDim: 3,
		},
		{
			desc: "arbitrary layers are summed",
			model: fl.GlobalModel{
				Weights: fl.Weights{"a": fl.Vector(1, 2), "b": nested},
			},
			input:    []float64{1, 1},
			output:   5,
			inputDim: 2,
		},
		{
			desc: "layers of different lengths",
			model: fl.GlobalModel{
				Weights: fl.Weights{"a": fl.Vector(1, 2), "b": fl.Vector(1)},
			},
			err: fl.ErrUnsupportedModel,
		},
		{
			desc:  "no weights",
			model: fl.GlobalModel{Weights: fl.Weights{}},
			err:   fl.ErrUnsupportedModel,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			m, err := fl.ModelFromSnapshot(tc.model)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.inputDim, m.InputDim())

			out, err := m.Predict(tc.input)
			require.NoError(t, err)
			assert.InDelta(t, tc.output, out[0], 1e-12)
		})
	}
}

func TestLinearPredictInputDimension(t *testing.T) {
	m := fl.LinearModel{Weight: [][]float64{{1, 2}}, Bias: []float64{0}}
	_, err := m.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, fl.ErrInputDimension)
}
