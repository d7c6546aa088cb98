package logging

import (
	"net/http"
	"strconv"

	"github.com/dannyrandall/movies-realtime/internal/metrics"
	"github.com/dannyrandall/movies-realtime/internal/otel"
	"github.com/felixge/httpsnoop"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// LogConfig configures handling of application log events.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// InitLog configures the logger.
func InitLog(cfg LogConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else if cfg.Format == "text" {
		log.SetFormatter(&log.TextFormatter{})
	} else if cfg.Format == "color" {
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	}

	if lvl, err := log.ParseLevel(cfg.Level); err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	} else {
		log.SetLevel(lvl)
	}
}

// ForRequest returns a log entry tagged with the request's X-Ray trace id,
// so API logs can be joined with traces.
func ForRequest(r *http.Request) *log.Entry {
	span := trace.SpanFromContext(r.Context())
	entry := log.WithField("method", r.Method).WithField("uri", r.URL.RequestURI())
	if span.SpanContext().HasTraceID() {
		entry = entry.WithField("trace_id", otel.XRayTraceID(span))
	}
	return entry
}

// RequestLogger logs every request once it has been served and counts it.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(m.Code)).Inc()
		ForRequest(r).WithFields(log.Fields{
			"status":   m.Code,
			"size":     m.Written,
			"duration": m.Duration,
		}).Info("handled request")
	})
}
