package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/api"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	idKey       = "experimentID"
	maxBodySize = 1024 * 1024 * 32
)

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/experiments", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			createExperimentEndpoint(svc),
			decodeExperimentReq,
			api.EncodeResponse,
			opts...,
		), "create-experiment").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listExperimentsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-experiments").ServeHTTP)
		r.Route("/{experimentID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getExperimentEndpoint(svc),
				decodeEntityReq,
				api.EncodeResponse,
				opts...,
			), "get-experiment").ServeHTTP)
			r.Post("/join", otelhttp.NewHandler(kithttp.NewServer(
				joinExperimentEndpoint(svc),
				decodePrincipalReq,
				api.EncodeResponse,
				opts...,
			), "join-experiment").ServeHTTP)
			r.Get("/participant", otelhttp.NewHandler(kithttp.NewServer(
				getParticipantEndpoint(svc),
				decodePrincipalReq,
				api.EncodeResponse,
				opts...,
			), "get-participant").ServeHTTP)
			r.Get("/participants", otelhttp.NewHandler(kithttp.NewServer(
				listParticipantsEndpoint(svc),
				decodeEntityReq,
				api.EncodeResponse,
				opts...,
			), "list-participants").ServeHTTP)
			r.Post("/start", otelhttp.NewHandler(kithttp.NewServer(
				startExperimentEndpoint(svc),
				decodeEntityReq,
				api.EncodeResponse,
				opts...,
			), "start-experiment").ServeHTTP)
			r.Post("/train", otelhttp.NewHandler(kithttp.NewServer(
				trainEndpoint(svc),
				decodeTrainReq,
				api.EncodeResponse,
				opts...,
			), "train-and-submit").ServeHTTP)
			r.Post("/contributions", otelhttp.NewHandler(kithttp.NewServer(
				uploadContributionEndpoint(svc),
				decodeUploadReq,
				api.EncodeResponse,
				opts...,
			), "upload-contribution").ServeHTTP)
			r.Get("/contributions", otelhttp.NewHandler(kithttp.NewServer(
				listContributionsEndpoint(svc),
				decodeListContributionsReq,
				api.EncodeResponse,
				opts...,
			), "list-contributions").ServeHTTP)
			r.Post("/aggregate", otelhttp.NewHandler(kithttp.NewServer(
				aggregateEndpoint(svc),
				decodeRoundReq,
				api.EncodeResponse,
				opts...,
			), "aggregate").ServeHTTP)
			r.Get("/model", otelhttp.NewHandler(kithttp.NewServer(
				getGlobalModelEndpoint(svc),
				decodeRoundReq,
				api.EncodeResponse,
				opts...,
			), "get-global-model").ServeHTTP)
			r.Post("/predict", otelhttp.NewHandler(kithttp.NewServer(
				predictEndpoint(svc),
				decodePredictReq,
				api.EncodeResponse,
				opts...,
			), "predict").ServeHTTP)
		})
	})

	mux.Get("/health", supermq.Health("siteguard", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func readRound(r *http.Request) (*uint64, error) {
	if !r.URL.Query().Has(api.RoundKey) {
		return nil, nil
	}
	round, err := apiutil.ReadNumQuery[uint64](r, api.RoundKey, 0)
	if err != nil {
		return nil, errors.Join(errInvalidRound, err)
	}

	return &round, nil
}

func readPage(r *http.Request) (uint64, uint64, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return 0, 0, err
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return 0, 0, err
	}

	return o, l, nil
}

func decodeJSON(r *http.Request, v any) error {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(v); err != nil {
		return errors.Join(err, apiutil.ErrValidation)
	}

	return nil
}

func decodeEntityReq(_ context.Context, r *http.Request) (any, error) {
	return entityReq{
		id: chi.URLParam(r, idKey),
	}, nil
}

func decodePrincipalReq(_ context.Context, r *http.Request) (any, error) {
	return principalReq{
		id:          chi.URLParam(r, idKey),
		principalID: apiutil.ExtractBearerToken(r),
	}, nil
}

func decodeExperimentReq(_ context.Context, r *http.Request) (any, error) {
	var req experimentReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, l, err := readPage(r)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeTrainReq(_ context.Context, r *http.Request) (any, error) {
	var req trainReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.id = chi.URLParam(r, idKey)

	return req, nil
}

func decodeUploadReq(_ context.Context, r *http.Request) (any, error) {
	var req uploadReq
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)

	switch ct := r.Header.Get("Content-Type"); {
	case strings.Contains(ct, api.CBORContentType):
		if err := cbor.NewDecoder(body).Decode(&req); err != nil {
			return nil, errors.Join(err, apiutil.ErrValidation)
		}
	case strings.Contains(ct, api.ContentType):
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, errors.Join(err, apiutil.ErrValidation)
		}
	default:
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}
	req.id = chi.URLParam(r, idKey)
	req.principalID = apiutil.ExtractBearerToken(r)

	return req, nil
}

func decodeListContributionsReq(_ context.Context, r *http.Request) (any, error) {
	round, err := readRound(r)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}
	o, l, err := readPage(r)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listContributionsReq{
		id:     chi.URLParam(r, idKey),
		round:  round,
		offset: o,
		limit:  l,
	}, nil
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	round, err := readRound(r)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return roundReq{
		id:    chi.URLParam(r, idKey),
		round: round,
	}, nil
}

func decodePredictReq(_ context.Context, r *http.Request) (any, error) {
	var req predictReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.id = chi.URLParam(r, idKey)

	return req, nil
}
