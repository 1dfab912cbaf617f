package api

import (
	"errors"

	"github.com/absmach/siteguard/pkg/api"
	"github.com/absmach/siteguard/pkg/fl"
	apiutil "github.com/absmach/supermq/api/http/util"
)

var (
	errLimitSize    = errors.New("limit exceeds maximum page size")
	errInvalidRound = errors.New("round must be a non-negative integer")
)

type experimentReq struct {
	Name                 string         `json:"name,omitempty"`
	Params               map[string]any `json:"params,omitempty"`
	ParticipantThreshold uint64         `json:"participant_threshold,omitempty"`
}

func (req *experimentReq) validate() error {
	return nil
}

type entityReq struct {
	id string
}

func (req *entityReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (req *listEntityReq) validate() error {
	if req.limit > api.MaxLimitSize {
		return errLimitSize
	}

	return nil
}

// principalReq addresses an experiment on behalf of the bearer principal.
type principalReq struct {
	id          string
	principalID string
}

func (req *principalReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type trainReq struct {
	id            string
	ParticipantID string  `json:"participant_id"`
	ProjectID     string  `json:"project_id"`
	Epochs        int     `json:"epochs"`
	LearningRate  float64 `json:"learning_rate"`
}

func (req *trainReq) validate() error {
	if req.id == "" || req.ParticipantID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type uploadReq struct {
	id          string
	principalID string
	Weights     fl.Payload `cbor:"weights"      json:"weights"`
	DatasetSize int64      `cbor:"dataset_size" json:"dataset_size"`
}

func (req *uploadReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listContributionsReq struct {
	id            string
	round         *uint64
	offset, limit uint64
}

func (req *listContributionsReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}
	if req.limit > api.MaxLimitSize {
		return errLimitSize
	}

	return nil
}

type roundReq struct {
	id    string
	round *uint64
}

func (req *roundReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type predictReq struct {
	id     string
	Inputs [][]float64 `json:"inputs"`
}

func (req *predictReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}
