package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/mqtt"
)

var (
	errInvalidTopic       = errors.New("invalid contribution topic")
	errInvalidPrincipal   = errors.New("invalid principal_id")
	errInvalidDatasetSize = errors.New("invalid dataset_size")
)

func ContributionTopic(baseTopic, experimentID string) string {
	return baseTopic + "/fl/experiments/" + experimentID + "/contributions"
}

// Subscribe accepts contributions published by participants over MQTT. Each
// message carries principal_id, weights and dataset_size; the experiment is
// taken from the topic.
func Subscribe(ctx context.Context, baseTopic string, pubsub mqtt.PubSub, svc Service, logger *slog.Logger) error {
	return pubsub.Subscribe(ctx, ContributionTopic(baseTopic, "+"), Handle(ctx, baseTopic, svc, logger))
}

func Handle(ctx context.Context, baseTopic string, svc Service, logger *slog.Logger) mqtt.Handler {
	prefix := baseTopic + "/fl/experiments/"

	return func(topic string, msg map[string]any) error {
		experimentID, ok := strings.CutPrefix(topic, prefix)
		if !ok {
			return fmt.Errorf("%w: %s", errInvalidTopic, topic)
		}
		experimentID, ok = strings.CutSuffix(experimentID, "/contributions")
		if !ok || experimentID == "" || strings.Contains(experimentID, "/") {
			return fmt.Errorf("%w: %s", errInvalidTopic, topic)
		}

		principalID, ok := msg["principal_id"].(string)
		if !ok || principalID == "" {
			return errInvalidPrincipal
		}
		size, ok := msg["dataset_size"].(float64)
		if !ok || size != math.Trunc(size) || math.Abs(size) >= math.MaxInt64 {
			return errInvalidDatasetSize
		}
		payload, err := fl.ParsePayload(msg["weights"])
		if err != nil {
			return err
		}

		c, err := svc.UploadContribution(ctx, experimentID, principalID, payload, int64(size))
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "accepted contribution over mqtt",
			slog.String("experiment_id", experimentID),
			slog.String("contribution_id", c.ID),
			slog.Uint64("round", c.Round))

		return nil
	}
}
