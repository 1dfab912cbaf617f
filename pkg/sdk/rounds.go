package sdk

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
)

type TrainRequest struct {
	ParticipantID string  `json:"participant_id"`
	ProjectID     string  `json:"project_id"`
	Epochs        int     `json:"epochs"`
	LearningRate  float64 `json:"learning_rate"`
}

type TrainResult struct {
	ExperimentID   string  `json:"experiment_id"`
	ParticipantID  string  `json:"participant_id"`
	Round          uint64  `json:"round"`
	SamplesTrained int     `json:"samples_trained"`
	Loss           float64 `json:"loss"`
	ContributionID string  `json:"contribution_id"`
	Aggregated     bool    `json:"aggregated"`
	NewRound       *uint64 `json:"new_round,omitempty"`
}

type Contribution struct {
	ID            string         `json:"id"`
	ExperimentID  string         `json:"experiment_id"`
	ParticipantID string         `json:"participant_id"`
	PrincipalID   string         `json:"principal_id"`
	Round         uint64         `json:"round"`
	Weights       map[string]any `json:"weights"`
	DatasetSize   int64          `json:"dataset_size"`
	CreatedAt     time.Time      `json:"created_at"`
}

type ContributionPage struct {
	Offset        uint64         `json:"offset"`
	Limit         uint64         `json:"limit"`
	Total         uint64         `json:"total"`
	Contributions []Contribution `json:"contributions"`
}

type Rejection struct {
	ContributionID string `json:"contribution_id"`
	Reason         string `json:"reason"`
}

type AggregationResult struct {
	ExperimentID      string         `json:"experiment_id"`
	Round             uint64         `json:"round"`
	AggregatedWeights map[string]any `json:"aggregated_weights"`
	RejectedUploads   []Rejection    `json:"rejected_uploads"`
	SupersededUploads []string       `json:"superseded_uploads"`
	Contributors      []string       `json:"contributors"`
	TotalSamples      int64          `json:"total_samples"`
}

type Architecture struct {
	Kind      string `json:"kind"`
	InputDim  int    `json:"input_dim"`
	OutputDim int    `json:"output_dim"`
}

type GlobalModel struct {
	ExperimentID string         `json:"experiment_id"`
	Round        uint64         `json:"round"`
	Architecture Architecture   `json:"architecture"`
	Weights      map[string]any `json:"weights"`
	CreatedAt    time.Time      `json:"created_at"`
}

type Prediction struct {
	ExperimentID string    `json:"experiment_id"`
	ModelRound   uint64    `json:"model_round"`
	Predictions  []float64 `json:"predictions"`
}

type uploadReq struct {
	Weights     any   `cbor:"weights"      json:"weights"`
	DatasetSize int64 `cbor:"dataset_size" json:"dataset_size"`
}

type predictReq struct {
	Inputs [][]float64 `json:"inputs"`
}

func (sdk *siteSDK) Train(id string, req TrainRequest) (TrainResult, error) {
	var res TrainResult
	if err := sdk.request(http.MethodPost, experimentURL(sdk.coordinatorURL, id)+"/train", "", req, http.StatusOK, &res); err != nil {
		return TrainResult{}, err
	}

	return res, nil
}

func (sdk *siteSDK) UploadContribution(id, token string, weights any, datasetSize int64) (Contribution, error) {
	var c Contribution
	req := uploadReq{Weights: weights, DatasetSize: datasetSize}
	if err := sdk.request(http.MethodPost, experimentURL(sdk.coordinatorURL, id)+"/contributions", token, req, http.StatusCreated, &c); err != nil {
		return Contribution{}, err
	}

	return c, nil
}

func (sdk *siteSDK) UploadContributionCBOR(id, token string, weights any, datasetSize int64) (Contribution, error) {
	data, err := cbor.Marshal(uploadReq{Weights: weights, DatasetSize: datasetSize})
	if err != nil {
		return Contribution{}, err
	}

	body, err := sdk.processRequest(http.MethodPost, experimentURL(sdk.coordinatorURL, id)+"/contributions", CTCBOR, token, data, http.StatusCreated)
	if err != nil {
		return Contribution{}, err
	}

	var c Contribution
	if err := json.Unmarshal(body, &c); err != nil {
		return Contribution{}, err
	}

	return c, nil
}

func (sdk *siteSDK) ListContributions(id string, round *uint64, offset, limit uint64) (ContributionPage, error) {
	url := experimentURL(sdk.coordinatorURL, id) + "/contributions" + query(round, offset, limit)

	var page ContributionPage
	if err := sdk.request(http.MethodGet, url, "", nil, http.StatusOK, &page); err != nil {
		return ContributionPage{}, err
	}

	return page, nil
}

func (sdk *siteSDK) Aggregate(id string, round *uint64) (AggregationResult, error) {
	url := experimentURL(sdk.coordinatorURL, id) + "/aggregate" + query(round, 0, 0)

	var res AggregationResult
	if err := sdk.request(http.MethodPost, url, "", nil, http.StatusOK, &res); err != nil {
		return AggregationResult{}, err
	}

	return res, nil
}

func (sdk *siteSDK) GetGlobalModel(id string, round *uint64) (GlobalModel, error) {
	url := experimentURL(sdk.coordinatorURL, id) + "/model" + query(round, 0, 0)

	var gm GlobalModel
	if err := sdk.request(http.MethodGet, url, "", nil, http.StatusOK, &gm); err != nil {
		return GlobalModel{}, err
	}

	return gm, nil
}

func (sdk *siteSDK) Predict(id string, inputs [][]float64) (Prediction, error) {
	var p Prediction
	if err := sdk.request(http.MethodPost, experimentURL(sdk.coordinatorURL, id)+"/predict", "", predictReq{Inputs: inputs}, http.StatusOK, &p); err != nil {
		return Prediction{}, err
	}

	return p, nil
}
