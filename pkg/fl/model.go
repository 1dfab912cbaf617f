package fl

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	LinearKind       = "linear"
	DefaultInputDim  = 6
	DefaultOutputDim = 1

	WeightLayer = "linear.weight"
	BiasLayer   = "linear.bias"
)

func DefaultArchitecture() Architecture {
	return Architecture{
		Kind:      LinearKind,
		InputDim:  DefaultInputDim,
		OutputDim: DefaultOutputDim,
	}
}

// LinearModel computes y = Wx + b. Weight holds OutputDim rows of InputDim
// columns.
type LinearModel struct {
	Weight [][]float64
	Bias   []float64
}

// NewLinearModel initializes weights uniformly in [-1/sqrt(in), 1/sqrt(in)].
func NewLinearModel(arch Architecture, rng *rand.Rand) (LinearModel, error) {
	if arch.InputDim <= 0 || arch.OutputDim <= 0 {
		return LinearModel{}, fmt.Errorf("%w: input_dim %d, output_dim %d", ErrUnsupportedModel, arch.InputDim, arch.OutputDim)
	}
	bound := 1 / math.Sqrt(float64(arch.InputDim))
	draw := func() float64 { return rng.Float64()*2*bound - bound }

	m := LinearModel{
		Weight: make([][]float64, arch.OutputDim),
		Bias:   make([]float64, arch.OutputDim),
	}
	for i := range m.Weight {
		m.Weight[i] = make([]float64, arch.InputDim)
		for j := range m.Weight[i] {
			m.Weight[i][j] = draw()
		}
		m.Bias[i] = draw()
	}

	return m, nil
}

// ModelFromSnapshot rebuilds the linear model of a global snapshot, using the
// persisted architecture when present.
func ModelFromSnapshot(gm GlobalModel) (LinearModel, error) {
	if gm.Architecture.Kind == LinearKind && gm.Architecture.InputDim > 0 {
		return LinearFromWeights(gm.Architecture, gm.Weights)
	}

	return ReconstructLinear(gm.Weights)
}

// LinearFromWeights reads the canonical linear layers, checking them
// against the architecture. A missing bias is treated as zero.
func LinearFromWeights(arch Architecture, w Weights) (LinearModel, error) {
	out := arch.OutputDim
	if out <= 0 {
		out = DefaultOutputDim
	}
	wt, ok := w[WeightLayer]
	if !ok {
		return LinearModel{}, fmt.Errorf("%w: missing layer %q", ErrUnsupportedModel, WeightLayer)
	}
	if wt.Rank() == 1 && out == 1 {
		wt = Tensor{shape: []int{1, wt.Len()}, data: wt.data}
	}
	if wt.Rank() != 2 || wt.shape[0] != out || wt.shape[1] != arch.InputDim {
		return LinearModel{}, fmt.Errorf("%w: layer %q has shape %v, expected [%d %d]", ErrShapeMismatch, WeightLayer, wt.shape, out, arch.InputDim)
	}

	m := LinearModel{
		Weight: make([][]float64, out),
		Bias:   make([]float64, out),
	}
	for i := range m.Weight {
		m.Weight[i] = append([]float64{}, wt.data[i*arch.InputDim:(i+1)*arch.InputDim]...)
	}
	if b, ok := w[BiasLayer]; ok {
		if b.Len() != out {
			return LinearModel{}, fmt.Errorf("%w: layer %q has %d values, expected %d", ErrShapeMismatch, BiasLayer, b.Len(), out)
		}
		copy(m.Bias, b.data)
	}

	return m, nil
}

// ReconstructLinear infers a linear model from weights that carry no
// architecture. The canonical layers are used when present; otherwise every
// layer is squeezed and summed into a single weight vector with zero bias.
func ReconstructLinear(w Weights) (LinearModel, error) {
	if wt, ok := w[WeightLayer]; ok {
		arch := Architecture{Kind: LinearKind, OutputDim: 1}
		switch wt.Rank() {
		case 1:
			arch.InputDim = wt.Len()
		case 2:
			arch.OutputDim, arch.InputDim = wt.shape[0], wt.shape[1]
		default:
			return LinearModel{}, fmt.Errorf("%w: layer %q has rank %d", ErrUnsupportedModel, WeightLayer, wt.Rank())
		}

		return LinearFromWeights(arch, w)
	}

	var combined []float64
	for _, name := range w.Names() {
		t := w[name].Squeeze()
		if t.Rank() > 1 {
			return LinearModel{}, fmt.Errorf("%w: layer %q has shape %v", ErrUnsupportedModel, name, t.shape)
		}
		if combined == nil {
			combined = t.Data()

			continue
		}
		if len(combined) != t.Len() {
			return LinearModel{}, fmt.Errorf("%w: layer %q has %d values, expected %d", ErrUnsupportedModel, name, t.Len(), len(combined))
		}
		for i, v := range t.data {
			combined[i] += v
		}
	}
	if len(combined) == 0 {
		return LinearModel{}, fmt.Errorf("%w: no weights", ErrUnsupportedModel)
	}

	return LinearModel{
		Weight: [][]float64{combined},
		Bias:   []float64{0},
	}, nil
}

func (m LinearModel) InputDim() int {
	if len(m.Weight) == 0 {
		return 0
	}

	return len(m.Weight[0])
}

func (m LinearModel) OutputDim() int {
	return len(m.Weight)
}

func (m LinearModel) Architecture() Architecture {
	return Architecture{
		Kind:      LinearKind,
		InputDim:  m.InputDim(),
		OutputDim: m.OutputDim(),
	}
}

func (m LinearModel) Predict(x []float64) ([]float64, error) {
	if len(x) != m.InputDim() {
		return nil, fmt.Errorf("%w: got %d features, expected %d", ErrInputDimension, len(x), m.InputDim())
	}
	out := make([]float64, len(m.Weight))
	for i, row := range m.Weight {
		v := m.Bias[i]
		for j, wij := range row {
			v += wij * x[j]
		}
		out[i] = Finite(v)
	}

	return out, nil
}

// Weights serializes the model into the canonical layers.
func (m LinearModel) Weights() Weights {
	data := make([]float64, 0, m.OutputDim()*m.InputDim())
	for _, row := range m.Weight {
		data = append(data, row...)
	}

	return Weights{
		WeightLayer: {shape: []int{m.OutputDim(), m.InputDim()}, data: sanitize(data)},
		BiasLayer:   Vector(m.Bias...),
	}
}
