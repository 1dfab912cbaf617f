package api

import (
	"net/http"
	"strconv"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*experimentResponse)(nil)
	_ supermq.Response = (*listExperimentsResponse)(nil)
	_ supermq.Response = (*participantResponse)(nil)
	_ supermq.Response = (*startResponse)(nil)
	_ supermq.Response = (*trainResponse)(nil)
	_ supermq.Response = (*contributionResponse)(nil)
	_ supermq.Response = (*listContributionsResponse)(nil)
	_ supermq.Response = (*aggregationResponse)(nil)
	_ supermq.Response = (*modelResponse)(nil)
	_ supermq.Response = (*predictionResponse)(nil)
	_ supermq.Response = (*listParticipantsResponse)(nil)
)

type experimentResponse struct {
	fl.Experiment
	created bool
}

func (res experimentResponse) Code() int {
	if res.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (res experimentResponse) Headers() map[string]string {
	if res.created {
		return map[string]string{
			"Location": "/experiments/" + res.ID,
		}
	}

	return map[string]string{}
}

func (res experimentResponse) Empty() bool {
	return false
}

type listExperimentsResponse struct {
	fl.ExperimentPage
}

func (res listExperimentsResponse) Code() int {
	return http.StatusOK
}

func (res listExperimentsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res listExperimentsResponse) Empty() bool {
	return false
}

type participantResponse struct {
	fl.Participant
}

func (res participantResponse) Code() int {
	return http.StatusOK
}

func (res participantResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res participantResponse) Empty() bool {
	return false
}

type listParticipantsResponse struct {
	Total        uint64           `json:"total"`
	Participants []fl.Participant `json:"participants"`
}

func (res listParticipantsResponse) Code() int {
	return http.StatusOK
}

func (res listParticipantsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res listParticipantsResponse) Empty() bool {
	return false
}

type startResponse struct {
	coordinator.StartResult
}

func (res startResponse) Code() int {
	return http.StatusOK
}

func (res startResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res startResponse) Empty() bool {
	return false
}

type trainResponse struct {
	coordinator.TrainResult
}

func (res trainResponse) Code() int {
	return http.StatusOK
}

func (res trainResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res trainResponse) Empty() bool {
	return false
}

type contributionResponse struct {
	fl.Contribution
	created bool
}

func (res contributionResponse) Code() int {
	if res.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (res contributionResponse) Headers() map[string]string {
	if res.created {
		return map[string]string{
			"Location": "/experiments/" + res.ExperimentID + "/contributions?round=" + strconv.FormatUint(res.Round, 10),
		}
	}

	return map[string]string{}
}

func (res contributionResponse) Empty() bool {
	return false
}

type listContributionsResponse struct {
	fl.ContributionPage
}

func (res listContributionsResponse) Code() int {
	return http.StatusOK
}

func (res listContributionsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res listContributionsResponse) Empty() bool {
	return false
}

type aggregationResponse struct {
	coordinator.AggregationResult
}

func (res aggregationResponse) Code() int {
	return http.StatusOK
}

func (res aggregationResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res aggregationResponse) Empty() bool {
	return false
}

type modelResponse struct {
	fl.GlobalModel
}

func (res modelResponse) Code() int {
	return http.StatusOK
}

func (res modelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res modelResponse) Empty() bool {
	return false
}

type predictionResponse struct {
	coordinator.Prediction
}

func (res predictionResponse) Code() int {
	return http.StatusOK
}

func (res predictionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res predictionResponse) Empty() bool {
	return false
}
