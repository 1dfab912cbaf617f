package sdk

import (
	"net/http"
	"time"
)

const experimentsEndpoint = "/experiments"

type Experiment struct {
	ID                   string         `json:"id,omitempty"`
	Name                 string         `json:"name,omitempty"`
	Params               map[string]any `json:"params,omitempty"`
	ParticipantThreshold uint64         `json:"participant_threshold,omitempty"`
	CurrentRound         uint64         `json:"current_round"`
	Status               string         `json:"status,omitempty"`
	Version              uint64         `json:"version,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

type ExperimentPage struct {
	Offset      uint64       `json:"offset"`
	Limit       uint64       `json:"limit"`
	Total       uint64       `json:"total"`
	Experiments []Experiment `json:"experiments"`
}

type Participant struct {
	ID           string    `json:"id"`
	ExperimentID string    `json:"experiment_id"`
	PrincipalID  string    `json:"principal_id"`
	JoinedAt     time.Time `json:"joined_at"`
}

type ParticipantPage struct {
	Total        uint64        `json:"total"`
	Participants []Participant `json:"participants"`
}

type LocalModelRef struct {
	ParticipantID string `json:"participant_id"`
	Round         uint64 `json:"round"`
}

type StartResult struct {
	ExperimentID string          `json:"experiment_id"`
	Status       string          `json:"status"`
	Round        uint64          `json:"round"`
	Participants []LocalModelRef `json:"participants"`
}

func experimentURL(base, id string) string {
	return base + experimentsEndpoint + "/" + id
}

func (sdk *siteSDK) CreateExperiment(exp Experiment) (Experiment, error) {
	req := Experiment{
		Name:                 exp.Name,
		Params:               exp.Params,
		ParticipantThreshold: exp.ParticipantThreshold,
	}

	var e Experiment
	if err := sdk.request(http.MethodPost, sdk.coordinatorURL+experimentsEndpoint, "", req, http.StatusCreated, &e); err != nil {
		return Experiment{}, err
	}

	return e, nil
}

func (sdk *siteSDK) GetExperiment(id string) (Experiment, error) {
	var e Experiment
	if err := sdk.request(http.MethodGet, experimentURL(sdk.coordinatorURL, id), "", nil, http.StatusOK, &e); err != nil {
		return Experiment{}, err
	}

	return e, nil
}

func (sdk *siteSDK) ListExperiments(offset, limit uint64) (ExperimentPage, error) {
	url := sdk.coordinatorURL + experimentsEndpoint + query(nil, offset, limit)

	var page ExperimentPage
	if err := sdk.request(http.MethodGet, url, "", nil, http.StatusOK, &page); err != nil {
		return ExperimentPage{}, err
	}

	return page, nil
}

func (sdk *siteSDK) JoinExperiment(id, token string) (Participant, error) {
	var p Participant
	if err := sdk.request(http.MethodPost, experimentURL(sdk.coordinatorURL, id)+"/join", token, nil, http.StatusOK, &p); err != nil {
		return Participant{}, err
	}

	return p, nil
}

func (sdk *siteSDK) GetParticipant(id, token string) (Participant, error) {
	var p Participant
	if err := sdk.request(http.MethodGet, experimentURL(sdk.coordinatorURL, id)+"/participant", token, nil, http.StatusOK, &p); err != nil {
		return Participant{}, err
	}

	return p, nil
}

func (sdk *siteSDK) ListParticipants(id string) (ParticipantPage, error) {
	var page ParticipantPage
	if err := sdk.request(http.MethodGet, experimentURL(sdk.coordinatorURL, id)+"/participants", "", nil, http.StatusOK, &page); err != nil {
		return ParticipantPage{}, err
	}

	return page, nil
}

func (sdk *siteSDK) StartExperiment(id string) (StartResult, error) {
	var res StartResult
	if err := sdk.request(http.MethodPost, experimentURL(sdk.coordinatorURL, id)+"/start", "", nil, http.StatusOK, &res); err != nil {
		return StartResult{}, err
	}

	return res, nil
}
