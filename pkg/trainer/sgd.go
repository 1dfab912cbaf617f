// Package trainer runs local training for participants.
package trainer

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/siteguard/pkg/fl"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyDataset   = errors.New("empty dataset")
	ErrFeatureCount   = errors.New("sample feature count does not match model input")
	ErrInvalidEpochs  = errors.New("epochs must be positive")
	ErrInvalidLR      = errors.New("learning rate must be positive")
	ErrUnsupportedOut = errors.New("only single-output models can be trained")
)

var _ fl.Trainer = (*GradientDescent)(nil)

// GradientDescent performs full-batch gradient descent on mean squared error.
type GradientDescent struct{}

func NewGradientDescent() *GradientDescent {
	return &GradientDescent{}
}

func (gd *GradientDescent) Train(ctx context.Context, model fl.LinearModel, samples []fl.Sample, epochs int, lr float64) (fl.LinearModel, float64, error) {
	switch {
	case epochs <= 0:
		return fl.LinearModel{}, 0, ErrInvalidEpochs
	case !(lr > 0):
		return fl.LinearModel{}, 0, ErrInvalidLR
	case len(samples) == 0:
		return fl.LinearModel{}, 0, ErrEmptyDataset
	case model.OutputDim() != 1:
		return fl.LinearModel{}, 0, ErrUnsupportedOut
	}

	in := model.InputDim()
	n := len(samples)
	x := mat.NewDense(n, in, nil)
	y := mat.NewVecDense(n, nil)
	for i, s := range samples {
		if len(s.Features) != in {
			return fl.LinearModel{}, 0, fmt.Errorf("%w: sample %d has %d features, expected %d", ErrFeatureCount, i, len(s.Features), in)
		}
		x.SetRow(i, s.Features)
		y.SetVec(i, s.Label)
	}

	w := mat.NewVecDense(in, append([]float64{}, model.Weight[0]...))
	b := model.Bias[0]
	scale := 2 / float64(n)

	var loss float64
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fl.LinearModel{}, 0, err
		}

		var residual mat.VecDense
		residual.MulVec(x, w)
		var sum, sq float64
		for i := 0; i < n; i++ {
			r := residual.AtVec(i) + b - y.AtVec(i)
			residual.SetVec(i, r)
			sum += r
			sq += r * r
		}
		loss = sq / float64(n)

		var grad mat.VecDense
		grad.MulVec(x.T(), &residual)
		w.AddScaledVec(w, -lr*scale, &grad)
		b -= lr * scale * sum
	}

	trained := fl.LinearModel{
		Weight: [][]float64{mat.Col(nil, 0, w)},
		Bias:   []float64{fl.Finite(b)},
	}

	return trained, fl.Finite(loss), nil
}
