package coordinator

import (
	"context"

	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/mqtt"
)

// Notifier announces committed rounds to participants.
type Notifier interface {
	RoundAdvanced(ctx context.Context, e fl.Experiment, model fl.GlobalModel, res AggregationResult) error
}

type RoundNotification struct {
	ExperimentID string    `json:"experiment_id"`
	Round        uint64    `json:"round"`
	Status       fl.Status `json:"status"`
	Contributors []string  `json:"contributors"`
	TotalSamples int64     `json:"total_samples"`
}

func RoundTopic(baseTopic, experimentID string) string {
	return baseTopic + "/fl/experiments/" + experimentID + "/rounds/next"
}

type mqttNotifier struct {
	pubsub    mqtt.PubSub
	baseTopic string
}

func NewMQTTNotifier(pubsub mqtt.PubSub, baseTopic string) Notifier {
	return &mqttNotifier{
		pubsub:    pubsub,
		baseTopic: baseTopic,
	}
}

func (n *mqttNotifier) RoundAdvanced(ctx context.Context, e fl.Experiment, model fl.GlobalModel, res AggregationResult) error {
	msg := RoundNotification{
		ExperimentID: e.ID,
		Round:        model.Round,
		Status:       e.Status,
		Contributors: res.Contributors,
		TotalSamples: res.TotalSamples,
	}

	return n.pubsub.Publish(ctx, RoundTopic(n.baseTopic, e.ID), msg)
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) RoundAdvanced(context.Context, fl.Experiment, fl.GlobalModel, AggregationResult) error {
	return nil
}
