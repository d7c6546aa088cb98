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

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/dannyrandall/movies-realtime/internal/copilot"
	"github.com/dannyrandall/movies-realtime/internal/handlers"
	"github.com/dannyrandall/movies-realtime/internal/hub"
	"github.com/dannyrandall/movies-realtime/internal/logging"
	"github.com/dannyrandall/movies-realtime/internal/metrics"
	"github.com/dannyrandall/movies-realtime/internal/otel"
	"github.com/dannyrandall/movies-realtime/internal/service"
	"github.com/dannyrandall/movies-realtime/internal/store"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const (
	tracingNone = "none"
	tracingOtel = "otel"
	tracingXRay = "xray"
)

type Config struct {
	Addr    string `long:"addr" env:"ADDR" default:":8080" description:"Address to serve HTTP and WebSocket requests on"`
	Tracing string `long:"tracing" env:"TRACING" default:"none" choice:"none" choice:"otel" choice:"xray" description:"Request tracing backend"`

	Database struct {
		Driver string `long:"driver" env:"DRIVER" default:"postgres" choice:"postgres" choice:"sqlite3" description:"Database driver"`
		URL    string `long:"url" env:"URL" required:"true" description:"Database connection string"`
	} `group:"Database" namespace:"database" env-namespace:"DATABASE"`

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithField("err", err).Fatal("movies server failed")
	}
}

func run(ctx context.Context, cfg Config) error {
	svcName := copilot.ServiceName("movies")

	// Timeout for setup functions
	setupCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if cfg.Tracing == tracingOtel {
		shutdown, err := otel.SetupTracer(setupCtx, svcName)
		if err != nil {
			return fmt.Errorf("setup otel tracer: %w", err)
		}
		defer shutdown(context.Background())
	}

	s, err := openStore(setupCtx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(setupCtx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("store ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(metrics.ServerCollectors()...)

	h := hub.New()
	router := &handlers.Router{
		Service: &service.Movies{Store: s, Notifier: h},
		Hub:     h,
		Health:  s,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	var handler http.Handler = router.Handler()
	switch cfg.Tracing {
	case tracingOtel:
		handler = otelhttp.NewHandler(handler, "movies")
	case tracingXRay:
		handler = xray.Handler(xray.NewFixedSegmentNamer(svcName), handler)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// Shutdown doesn't track hijacked connections, so close subscribers here.
		h.Close()
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg Config) (*store.SQL, error) {
	if cfg.Tracing != tracingXRay {
		s, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	}

	db, err := xray.SQLContext(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open traced database: %w", err)
	}
	s, err := store.New(db, cfg.Database.Driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}
