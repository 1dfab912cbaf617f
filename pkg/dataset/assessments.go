package dataset

import (
	"context"
	"strings"

	"github.com/absmach/siteguard/pkg/fl"
)

// riskWeights maps hazard risk levels onto a hazard signal.
var riskWeights = map[string]float64{
	"LOW":    0.2,
	"MEDIUM": 0.6,
	"HIGH":   1.0,
}

// Assessment is a scored site assessment. Score is the safety score the
// model learns to predict.
type Assessment struct {
	ProjectID   string   `json:"project_id"`
	Score       float64  `json:"score"`
	Compliance  float64  `json:"compliance_score"`
	Structural  float64  `json:"structural_score"`
	Materials   float64  `json:"materials_score"`
	Financial   float64  `json:"financial_score"`
	Inspections float64  `json:"inspections_score"`
	Hazards     []string `json:"hazards"`
}

// AssessmentSource lists the assessments recorded for a project.
type AssessmentSource interface {
	Assessments(ctx context.Context, projectID string) ([]Assessment, error)
}

// HazardSignal is the mean risk weight of the hazards. Unknown levels count
// as zero.
func HazardSignal(hazards []string) float64 {
	if len(hazards) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hazards {
		sum += riskWeights[strings.ToUpper(strings.TrimSpace(h))]
	}

	return sum / float64(len(hazards))
}

func Features(a Assessment) fl.Sample {
	return fl.Sample{
		Features: []float64{
			HazardSignal(a.Hazards),
			fl.Finite(a.Compliance),
			fl.Finite(a.Structural),
			fl.Finite(a.Materials),
			fl.Finite(a.Financial),
			fl.Finite(a.Inspections),
		},
		Label: fl.Finite(a.Score),
	}
}

var _ fl.DatasetProvider = (*Assessments)(nil)

// Assessments turns a project's assessments into training samples.
type Assessments struct {
	source AssessmentSource
}

func NewAssessments(source AssessmentSource) *Assessments {
	return &Assessments{source: source}
}

func (a *Assessments) Dataset(ctx context.Context, projectID string) ([]fl.Sample, error) {
	records, err := a.source.Assessments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoDataset
	}
	out := make([]fl.Sample, len(records))
	for i, r := range records {
		out[i] = Features(r)
	}

	return out, nil
}
