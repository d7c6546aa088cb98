package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/dannyrandall/movies-realtime/internal/client"
	"github.com/dannyrandall/movies-realtime/internal/copilot"
	"github.com/dannyrandall/movies-realtime/internal/logging"
	"github.com/dannyrandall/movies-realtime/internal/metrics"
	"github.com/dannyrandall/movies-realtime/internal/moviequeue"
	"github.com/dannyrandall/movies-realtime/internal/otel"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Queue struct {
		URL  string `long:"url" env:"URL" description:"SQS queue URL (default: $COPILOT_QUEUE_URI)"`
		Name string `long:"name" env:"NAME" description:"Queue name used in traces (default: <app>-<env>-createMovie)"`
	} `group:"Queue" namespace:"queue" env-namespace:"QUEUE"`

	API struct {
		URL string `long:"url" env:"URL" description:"Movies API base URL (default: the Copilot service-discovery endpoint)"`
	} `group:"API" namespace:"api" env-namespace:"API"`

	MetricsAddr string `long:"metrics-addr" env:"METRICS_ADDR" default:":9090" description:"Address to serve Prometheus metrics on"`
	Tracing     bool   `long:"tracing" env:"TRACING" description:"Export traces to the local OTLP collector"`

	Log logging.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

func main() {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	logging.InitLog(cfg.Log)

	if cfg.Queue.URL == "" {
		cfg.Queue.URL = copilot.QueueURI()
	}
	if cfg.Queue.URL == "" {
		log.Fatal("queue URL is not set: pass --queue.url or set COPILOT_QUEUE_URI")
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = fmt.Sprintf("%s-%s-createMovie", copilot.App(), copilot.Environment())
	}
	if cfg.API.URL == "" {
		cfg.API.URL = copilot.ServiceEndpoint("movies", 8080)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithField("err", err).Fatal("movie processor failed")
	}
}

func run(ctx context.Context, cfg Config) error {
	if cfg.Tracing {
		shutdown, err := otel.SetupTracer(ctx, copilot.ServiceName("movies-processor"))
		if err != nil {
			return fmt.Errorf("setup otel tracer: %w", err)
		}
		defer shutdown(context.Background())
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.ProcessorCollectors()...)
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	q := moviequeue.New(sqs.NewFromConfig(awsCfg), client.New(cfg.API.URL), cfg.Queue.Name, cfg.Queue.URL)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.WithFields(log.Fields{"queue": cfg.Queue.URL, "api": cfg.API.URL}).Info("waiting for events")
		err := q.ReceiveAndProcess(ctx)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
		return err
	})
	return g.Wait()
}
