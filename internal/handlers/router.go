package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dannyrandall/movies-realtime/internal/hub"
	"github.com/dannyrandall/movies-realtime/internal/logging"
	"github.com/gorilla/mux"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Service MovieService
	Hub     *hub.Hub
	Health  Pinger
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Handler builds the gateway's routes, wrapped in request logging.
func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.ForRequest(r)
		log.Debugf("No handler registered for path %q", r.URL.String())
		httpError(w, http.StatusNotFound, log, "not found")
	})

	r.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics).Methods(http.MethodGet)
	}

	m := &Movie{Service: rt.Service}
	r.HandleFunc("/movies", m.listMovies).Methods(http.MethodGet)
	r.HandleFunc("/movies", m.createMovie).Methods(http.MethodPost)
	r.HandleFunc("/movies/{id:[0-9]+}", m.getMovie).Methods(http.MethodGet)
	r.HandleFunc("/movies/{id:[0-9]+}", m.updateMovie).Methods(http.MethodPut)
	r.HandleFunc("/movies/{id:[0-9]+}", m.deleteMovie).Methods(http.MethodDelete)

	r.Handle("/ws", &Subscribe{Hub: rt.Hub}).Methods(http.MethodGet)

	return logging.RequestLogger(r)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.Health == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := rt.Health.Ping(ctx); err != nil {
		httpError(w, http.StatusServiceUnavailable, logging.ForRequest(r), "store unavailable: %s", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
