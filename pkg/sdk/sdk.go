package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const (
	CTJSON string = "application/json"
	CTCBOR string = "application/cbor"
)

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// CreateExperiment creates a new experiment at round 0.
	//
	// example:
	//  exp := sdk.Experiment{
	//    Name:                 "tower-crane",
	//    ParticipantThreshold: 2,
	//  }
	//  exp, _ := sdk.CreateExperiment(exp)
	//  fmt.Println(exp)
	CreateExperiment(exp Experiment) (Experiment, error)

	// GetExperiment gets an experiment by id.
	//
	// example:
	//  exp, _ := sdk.GetExperiment("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(exp)
	GetExperiment(id string) (Experiment, error)

	// ListExperiments lists experiments.
	//
	// example:
	//  page, _ := sdk.ListExperiments(0, 10)
	//  fmt.Println(page)
	ListExperiments(offset, limit uint64) (ExperimentPage, error)

	// JoinExperiment registers the principal behind token as a participant.
	//
	// example:
	//  p, _ := sdk.JoinExperiment("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040", "site-a")
	//  fmt.Println(p)
	JoinExperiment(id, token string) (Participant, error)

	// GetParticipant returns the participant record of the principal behind token.
	GetParticipant(id, token string) (Participant, error)

	// ListParticipants lists everyone who joined the experiment.
	ListParticipants(id string) (ParticipantPage, error)

	// StartExperiment provisions local models and opens round 0.
	//
	// example:
	//  res, _ := sdk.StartExperiment("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(res.Participants)
	StartExperiment(id string) (StartResult, error)

	// Train runs local training for a participant and submits the result.
	//
	// example:
	//  res, _ := sdk.Train("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040", sdk.TrainRequest{
	//    ParticipantID: "8f1c...",
	//    ProjectID:     "tower-block-7",
	//    Epochs:        20,
	//    LearningRate:  0.05,
	//  })
	Train(id string, req TrainRequest) (TrainResult, error)

	// UploadContribution uploads weights as JSON. Weights are either a
	// mapping of layer names to nested lists or a bare list.
	//
	// example:
	//  c, _ := sdk.UploadContribution(id, "site-a", map[string]any{"w": []float64{1.0}}, 10)
	//  fmt.Println(c.Round)
	UploadContribution(id, token string, weights any, datasetSize int64) (Contribution, error)

	// UploadContributionCBOR uploads weights encoded as CBOR.
	UploadContributionCBOR(id, token string, weights any, datasetSize int64) (Contribution, error)

	// ListContributions lists contributions, optionally of a single round.
	ListContributions(id string, round *uint64, offset, limit uint64) (ContributionPage, error)

	// Aggregate commits the current round. A non-nil round must match it.
	//
	// example:
	//  res, _ := sdk.Aggregate("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040", nil)
	//  fmt.Println(res.Round)
	Aggregate(id string, round *uint64) (AggregationResult, error)

	// GetGlobalModel returns a snapshot, the latest one when round is nil.
	GetGlobalModel(id string, round *uint64) (GlobalModel, error)

	// Predict scores every row with the latest global model.
	//
	// example:
	//  p, _ := sdk.Predict(id, [][]float64{{0.2, 0.4, 0.6, 0.8, 0.1, 0.3}})
	//  fmt.Println(p.Predictions)
	Predict(id string, inputs [][]float64) (Prediction, error)
}

type siteSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &siteSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

type errorRes struct {
	Err string `json:"error"`
}

func (sdk *siteSDK) processRequest(method, reqURL, contentType, token string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e errorRes
		if err := json.Unmarshal(body, &e); err == nil && e.Err != "" {
			return []byte{}, fmt.Errorf("unexpected response code: %d: %s", resp.StatusCode, e.Err)
		}

		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}

func (sdk *siteSDK) request(method, reqURL, token string, in any, expectedRespCode int, out any) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return err
		}
	}

	body, err := sdk.processRequest(method, reqURL, CTJSON, token, data, expectedRespCode)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, out)
}

func query(round *uint64, offset, limit uint64) string {
	q := url.Values{}
	if round != nil {
		q.Set("round", strconv.FormatUint(*round, 10))
	}
	if offset > 0 {
		q.Set("offset", strconv.FormatUint(offset, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(limit, 10))
	}
	if len(q) == 0 {
		return ""
	}

	return "?" + q.Encode()
}
