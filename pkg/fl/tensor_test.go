package fl_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/absmach/siteguard/pkg/fl"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTensorFromValue(t *testing.T) {
	cases := []struct {
		desc  string
		value any
		shape []int
		data  []float64
		err   error
	}{
		{
			desc:  "scalar",
			value: 2.5,
			shape: []int{},
			data:  []float64{2.5},
		},
		{
			desc:  "vector",
			value: []any{1.0, 2.0, 3.0},
			shape: []int{3},
			data:  []float64{1, 2, 3},
		},
		{
			desc:  "matrix",
			value: []any{[]any{1.0, 2.0}, []any{3.0, 4.0}},
			shape: []int{2, 2},
			data:  []float64{1, 2, 3, 4},
		},
		{
			desc:  "empty list",
			value: []any{},
			shape: []int{0},
			data:  []float64{},
		},
		{
			desc:  "integer leaves from cbor",
			value: []any{uint64(1), int64(-2)},
			shape: []int{2},
			data:  []float64{1, -2},
		},
		{
			desc:  "non-finite values become zero",
			value: []any{math.NaN(), math.Inf(1), math.Inf(-1), 4.0},
			shape: []int{4},
			data:  []float64{0, 0, 0, 4},
		},
		{
			desc:  "ragged list",
			value: []any{[]any{1.0, 2.0}, []any{3.0}},
			err:   fl.ErrMalformedTensor,
		},
		{
			desc:  "mixed depth",
			value: []any{1.0, []any{2.0}},
			err:   fl.ErrMalformedTensor,
		},
		{
			desc:  "string leaf",
			value: []any{"1.0"},
			err:   fl.ErrMalformedTensor,
		},
		{
			desc:  "nested mapping",
			value: []any{map[string]any{"a": 1.0}},
			err:   fl.ErrMalformedTensor,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tensor, err := fl.TensorFromValue(tc.value)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.shape, tensor.Shape())
			assert.Equal(t, tc.data, tensor.Data())
		})
	}
}

func TestTensorJSON(t *testing.T) {
	m, err := fl.Matrix([][]float64{{0.5, -1}, {2, 3}})
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `[[0.5,-1],[2,3]]`, string(data))

	var decoded fl.Tensor
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m, decoded)

	data, err = json.Marshal(fl.Scalar(0.25))
	require.NoError(t, err)
	assert.Equal(t, "0.25", string(data))

	err = json.Unmarshal([]byte(`[[1],[2,3]]`), &decoded)
	assert.ErrorIs(t, err, fl.ErrMalformedTensor)
}

func TestNewTensor(t *testing.T) {
	_, err := fl.NewTensor([]int{2, 3}, []float64{1, 2})
	assert.ErrorIs(t, err, fl.ErrMalformedTensor)

	tensor, err := fl.NewTensor([]int{1, 2}, []float64{math.NaN(), 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, tensor.Data())
	assert.Equal(t, []int{2}, tensor.Squeeze().Shape())
}

func TestPayload(t *testing.T) {
	cases := []struct {
		desc    string
		body    string
		kind    fl.PayloadKind
		weights fl.Weights
		err     error
	}{
		{
			desc:    "named layers",
			body:    `{"w":[1.0,2.0],"b":0.5}`,
			kind:    fl.NamedLayers,
			weights: fl.Weights{"w": fl.Vector(1, 2), "b": fl.Scalar(0.5)},
		},
		{
			desc:    "bare sequence",
			body:    `[1.0,2.0,3.0]`,
			kind:    fl.SingleLayer,
			weights: fl.Weights{fl.SingleLayerName: fl.Vector(1, 2, 3)},
		},
		{
			desc:    "empty mapping",
			body:    `{}`,
			kind:    fl.NamedLayers,
			weights: fl.Weights{},
		},
		{
			desc: "string layer",
			body: `{"w":"abc"}`,
			err:  fl.ErrMalformedWeights,
		},
		{
			desc: "nested mapping",
			body: `{"w":{"inner":[1.0]}}`,
			err:  fl.ErrMalformedWeights,
		},
		{
			desc: "bare number",
			body: `3`,
			err:  fl.ErrMalformedWeights,
		},
		{
			desc: "empty layer name",
			body: `{"":[1.0]}`,
			err:  fl.ErrMalformedWeights,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var p fl.Payload
			err := json.Unmarshal([]byte(tc.body), &p)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, p.Kind())
			assert.Equal(t, tc.weights, p.Weights())
		})
	}
}

func TestPayloadCBOR(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{
		"linear.weight": []any{[]any{1.0, 2.0}},
		"linear.bias":   []any{uint64(3)},
	})
	require.NoError(t, err)

	var p fl.Payload
	require.NoError(t, cbor.Unmarshal(raw, &p))
	assert.Equal(t, fl.NamedLayers, p.Kind())

	w := p.Weights()
	assert.Equal(t, []int{1, 2}, w["linear.weight"].Shape())
	assert.Equal(t, []float64{3}, w["linear.bias"].Data())

	encoded, err := cbor.Marshal(fl.NewSingleLayer(fl.Vector(4, 5)))
	require.NoError(t, err)

	var single fl.Payload
	require.NoError(t, cbor.Unmarshal(encoded, &single))
	assert.Equal(t, fl.SingleLayer, single.Kind())
	assert.Equal(t, []float64{4, 5}, single.Weights()[fl.SingleLayerName].Data())
}
