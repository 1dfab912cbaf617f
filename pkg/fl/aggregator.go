package fl

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

// Aggregate computes the sample-weighted mean of every layer. Contributions
// with a non-positive dataset size, no layers, or a layer whose shape differs
// from the reference are rejected. Every layer is divided by the total
// dataset size of all accepted contributions, so a contribution missing a
// layer counts as zero for it.
func (f *FedAvgAggregator) Aggregate(contributions []Contribution, reference Weights) (AggregationResult, error) {
	ordered := slices.Clone(contributions)
	SortContributions(ordered)

	shapes := make(map[string][]int, len(reference))
	for name, t := range reference {
		shapes[name] = t.Shape()
	}

	var res AggregationResult
	for _, c := range ordered {
		if reason := admit(c, shapes); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{ContributionID: c.ID, Reason: reason})

			continue
		}
		if res.TotalSamples > math.MaxInt64-c.DatasetSize {
			return AggregationResult{}, ErrOverflow
		}
		for name, t := range c.Weights {
			if _, ok := shapes[name]; !ok {
				shapes[name] = t.Shape()
			}
		}
		res.TotalSamples += c.DatasetSize
		res.Accepted = append(res.Accepted, c)
	}

	if len(res.Accepted) == 0 {
		return AggregationResult{Rejected: res.Rejected}, ErrNoUpdates
	}

	res.Weights = make(Weights)
	for _, name := range layerNames(res.Accepted) {
		res.Weights[name] = averageLayer(name, res.Accepted, res.TotalSamples)
	}

	return res, nil
}

func admit(c Contribution, shapes map[string][]int) string {
	if c.DatasetSize <= 0 {
		return "dataset_size must be positive"
	}
	if len(c.Weights) == 0 {
		return "empty weights"
	}
	for _, name := range c.Weights.Names() {
		want, ok := shapes[name]
		if !ok {
			continue
		}
		if got := c.Weights[name].Shape(); !slices.Equal(want, got) {
			return fmt.Sprintf("layer %q has shape %v, expected %v", name, got, want)
		}
	}

	return ""
}

func layerNames(accepted []Contribution) []string {
	var names []string
	for _, c := range accepted {
		for name := range c.Weights {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)

	return names
}

func averageLayer(name string, accepted []Contribution, totalSamples int64) Tensor {
	var shape []int
	var sum []float64
	for _, c := range accepted {
		t, ok := c.Weights[name]
		if !ok {
			continue
		}
		if sum == nil {
			shape = t.Shape()
			sum = make([]float64, t.Len())
		}
		weight := float64(c.DatasetSize)
		for i, v := range t.data {
			sum[i] += v * weight
		}
	}

	if len(sum) == 0 {
		return Vector(0)
	}
	total := float64(totalSamples)
	for i := range sum {
		sum[i] /= total
	}

	return Tensor{shape: shape, data: sanitize(sum)}
}

// SortContributions orders contributions by creation time, then by ID.
func SortContributions(cs []Contribution) {
	slices.SortStableFunc(cs, func(a, b Contribution) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})
}
