package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/coordinator/api"
	"github.com/absmach/siteguard/coordinator/middleware"
	"github.com/absmach/siteguard/pkg/dataset"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/mqtt"
	"github.com/absmach/siteguard/pkg/storage"
	"github.com/absmach/siteguard/pkg/trainer"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7070"
	envPrefixHTTP = "SITEGUARD_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel    string        `env:"SITEGUARD_LOG_LEVEL"       envDefault:"info"`
	InstanceID  string        `env:"SITEGUARD_INSTANCE_ID"`
	MQTTAddress string        `env:"SITEGUARD_MQTT_ADDRESS"`
	MQTTQoS     uint8         `env:"SITEGUARD_MQTT_QOS"        envDefault:"1"`
	MQTTTimeout time.Duration `env:"SITEGUARD_MQTT_TIMEOUT"    envDefault:"30s"`
	MQTTUser    string        `env:"SITEGUARD_MQTT_USERNAME"`
	MQTTPass    string        `env:"SITEGUARD_MQTT_PASSWORD"`
	MQTTTopic   string        `env:"SITEGUARD_MQTT_BASE_TOPIC" envDefault:"siteguard"`

	AggregationSchedule string `env:"SITEGUARD_AGGREGATION_SCHEDULE"`
	AggregationTimezone string `env:"SITEGUARD_AGGREGATION_TIMEZONE" envDefault:"UTC"`

	SyntheticSamples int     `env:"SITEGUARD_SYNTHETIC_SAMPLES" envDefault:"256"`
	SyntheticNoise   float64 `env:"SITEGUARD_SYNTHETIC_NOISE"   envDefault:"0.05"`
	SyntheticSeed    uint64  `env:"SITEGUARD_SYNTHETIC_SEED"    envDefault:"1"`

	Coordinator coordinator.Config `envPrefix:"SITEGUARD_"`
	Storage     storage.Config
	OTELURL     url.URL `env:"SITEGUARD_OTEL_URL"`
	TraceRatio  float64 `env:"SITEGUARD_TRACE_RATIO" envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	if err := cfg.Coordinator.Validate(); err != nil {
		logger.Error("invalid coordinator configuration", slog.String("error", err.Error()))

		return
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("type", cfg.Storage.Type), slog.String("error", err.Error()))

		return
	}
	if repos.Closer != nil {
		defer func() {
			if err := repos.Closer.Close(); err != nil {
				logger.Error("error closing storage", slog.Any("error", err))
			}
		}()
	}

	var pubsub mqtt.PubSub
	notifier := coordinator.NewNoopNotifier()
	if cfg.MQTTAddress != "" {
		pubsub, err = mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName+"-"+cfg.InstanceID, cfg.MQTTUser, cfg.MQTTPass, cfg.MQTTTopic, cfg.MQTTTimeout, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Error("error closing mqtt pubsub", slog.Any("error", err))
			}
		}()
		notifier = coordinator.NewMQTTNotifier(pubsub, cfg.MQTTTopic)
	}

	svc := coordinator.NewService(
		repos,
		fl.NewFedAvgAggregator(),
		trainer.NewGradientDescent(),
		dataset.NewSynthetic(cfg.SyntheticSamples, cfg.SyntheticNoise, cfg.SyntheticSeed),
		notifier,
		cfg.Coordinator,
		logger,
	)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if pubsub != nil {
		if err := coordinator.Subscribe(ctx, cfg.MQTTTopic, pubsub, svc, logger); err != nil {
			logger.Error("failed to subscribe to contribution topic", slog.String("error", err.Error()))

			return
		}
	}

	if cfg.AggregationSchedule != "" {
		sched, err := coordinator.NewScheduler(svc, cfg.AggregationSchedule, cfg.AggregationTimezone, logger)
		if err != nil {
			logger.Error("failed to create aggregation scheduler", slog.String("error", err.Error()))

			return
		}
		g.Go(func() error {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
