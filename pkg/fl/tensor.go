package fl

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

const maxTensorRank = 8

// Tensor is a rectangular float64 array with an explicit shape. A tensor
// with an empty shape is a scalar. Non-finite values never survive
// construction.
type Tensor struct {
	shape []int
	data  []float64
}

func NewTensor(shape []int, data []float64) (Tensor, error) {
	if len(shape) > maxTensorRank {
		return Tensor{}, fmt.Errorf("%w: rank %d exceeds %d", ErrMalformedTensor, len(shape), maxTensorRank)
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Tensor{}, fmt.Errorf("%w: negative dimension in %v", ErrMalformedTensor, shape)
		}
		n *= d
	}
	if n != len(data) {
		return Tensor{}, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrMalformedTensor, shape, n, len(data))
	}

	return Tensor{
		shape: append([]int{}, shape...),
		data:  sanitize(data),
	}, nil
}

func Scalar(v float64) Tensor {
	return Tensor{shape: []int{}, data: sanitize([]float64{v})}
}

func Vector(values ...float64) Tensor {
	return Tensor{shape: []int{len(values)}, data: sanitize(values)}
}

// Matrix builds a rank-2 tensor from equally sized rows.
func Matrix(rows [][]float64) (Tensor, error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return Tensor{}, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrMalformedTensor, i, len(row), cols)
		}
		data = append(data, row...)
	}

	return NewTensor([]int{len(rows), cols}, data)
}

func (t Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

func (t Tensor) Data() []float64 {
	return slices.Clone(t.data)
}

func (t Tensor) Len() int {
	return len(t.data)
}

func (t Tensor) Rank() int {
	return len(t.shape)
}

// Squeeze drops a leading dimension of size one.
func (t Tensor) Squeeze() Tensor {
	if len(t.shape) > 1 && t.shape[0] == 1 {
		return Tensor{shape: slices.Clone(t.shape[1:]), data: slices.Clone(t.data)}
	}

	return t
}

// Value returns the tensor as nested []any lists, or a float64 for scalars.
func (t Tensor) Value() any {
	if len(t.shape) == 0 {
		if len(t.data) == 0 {
			return []any{}
		}

		return t.data[0]
	}
	v, _ := nest(t.shape, t.data)

	return v
}

func nest(shape []int, data []float64) (any, []float64) {
	if len(shape) == 0 {
		return data[0], data[1:]
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i], data = nest(shape[1:], data)
	}

	return out, data
}

func (t Tensor) MarshalJSON() ([]byte, error) {
	if len(t.shape) == 0 && len(t.data) == 1 {
		return strconv.AppendFloat(nil, t.data[0], 'g', -1, 64), nil
	}

	return json.Marshal(t.Value())
}

func (t *Tensor) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTensor, err)
	}
	parsed, err := TensorFromValue(v)
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

// TensorFromValue converts decoded JSON or CBOR (numbers and nested lists)
// into a tensor. Ragged lists and non-numeric leaves are rejected.
func TensorFromValue(v any) (Tensor, error) {
	shape, data, err := flatten(v, 0)
	if err != nil {
		return Tensor{}, err
	}

	return NewTensor(shape, data)
}

func flatten(v any, depth int) ([]int, []float64, error) {
	if depth > maxTensorRank {
		return nil, nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformedTensor, maxTensorRank)
	}
	if f, ok := toFloat(v); ok {
		return nil, []float64{f}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unsupported element of type %T", ErrMalformedTensor, v)
	}
	if len(items) == 0 {
		return []int{0}, nil, nil
	}

	var inner []int
	var data []float64
	for i, item := range items {
		s, d, err := flatten(item, depth+1)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			inner = s
		} else if !slices.Equal(inner, s) {
			return nil, nil, fmt.Errorf("%w: ragged list at depth %d", ErrMalformedTensor, depth)
		}
		data = append(data, d...)
	}

	return append([]int{len(items)}, inner...), data, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

// Finite replaces NaN and infinities with zero.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}

func sanitize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Finite(v)
	}

	return out
}
