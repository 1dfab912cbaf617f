package fl

import "errors"

var (
	ErrNoUpdates        = errors.New("no valid contributions provided for aggregation")
	ErrOverflow         = errors.New("sample count overflow during aggregation")
	ErrMalformedTensor  = errors.New("malformed tensor")
	ErrMalformedWeights = errors.New("malformed weights payload")
	ErrShapeMismatch    = errors.New("tensor shape mismatch")
	ErrInputDimension   = errors.New("input dimension mismatch")
	ErrUnsupportedModel = errors.New("cannot reconstruct model from weights")
)
