package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dannyrandall/movies-realtime/internal/logging"
	"github.com/dannyrandall/movies-realtime/internal/movies"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const requestTimeout = 10 * time.Second

// MovieService is the set of operations served under /movies.
type MovieService interface {
	List(ctx context.Context) ([]movies.Movie, error)
	Get(ctx context.Context, id int64) (movies.Movie, error)
	Create(ctx context.Context, in movies.Input) (movies.Movie, error)
	Update(ctx context.Context, id int64, in movies.Input) (movies.Movie, error)
	Delete(ctx context.Context, id int64) (movies.Movie, error)
}

type Movie struct {
	Service MovieService
}

func (m *Movie) listMovies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	log := logging.ForRequest(r)

	list, err := m.Service.List(ctx)
	if err != nil {
		serviceError(w, log, err)
		return
	}

	log.WithField("count", len(list)).Debug("listed movies")
	writeJSON(w, log, http.StatusOK, list)
}

func (m *Movie) getMovie(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	log := logging.ForRequest(r)

	id, ok := movieID(w, r, log)
	if !ok {
		return
	}

	movie, err := m.Service.Get(ctx, id)
	if err != nil {
		serviceError(w, log, err)
		return
	}

	log.Debugf("Got movie %+v", movie)
	writeJSON(w, log, http.StatusOK, movie)
}

func (m *Movie) createMovie(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	log := logging.ForRequest(r)

	in, ok := decodeInput(w, r, log)
	if !ok {
		return
	}

	movie, err := m.Service.Create(ctx, in)
	if err != nil {
		serviceError(w, log, err)
		return
	}

	log.Infof("Created movie %d", movie.ID)
	writeJSON(w, log, http.StatusOK, movie)
}

func (m *Movie) updateMovie(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	log := logging.ForRequest(r)

	id, ok := movieID(w, r, log)
	if !ok {
		return
	}

	in, ok := decodeInput(w, r, log)
	if !ok {
		return
	}

	movie, err := m.Service.Update(ctx, id, in)
	if err != nil {
		serviceError(w, log, err)
		return
	}

	log.Infof("Updated movie %d", movie.ID)
	writeJSON(w, log, http.StatusOK, movie)
}

func (m *Movie) deleteMovie(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	log := logging.ForRequest(r)

	id, ok := movieID(w, r, log)
	if !ok {
		return
	}

	movie, err := m.Service.Delete(ctx, id)
	if err != nil {
		serviceError(w, log, err)
		return
	}

	log.Infof("Deleted movie %d", movie.ID)
	writeJSON(w, log, http.StatusOK, movie)
}

// movieID parses the {id} route variable. The route only matches digits,
// so the only failure left is overflow, which can't name a stored movie.
func movieID(w http.ResponseWriter, r *http.Request, log *log.Entry) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httpError(w, http.StatusNotFound, log, "no movie found with id %q", raw)
		return 0, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request, log *log.Entry) (movies.Input, bool) {
	in, err := movies.DecodeInput(r.Body)
	var verr *movies.ValidationError
	switch {
	case errors.As(err, &verr):
		httpError(w, http.StatusUnprocessableEntity, log, "%s", verr)
		return movies.Input{}, false
	case err != nil:
		httpError(w, http.StatusBadRequest, log, "decode movie: %s", err)
		return movies.Input{}, false
	}
	return in, true
}

// serviceError maps a service failure onto a response. Storage failures are
// logged in full but answered with a generic message.
func serviceError(w http.ResponseWriter, log *log.Entry, err error) {
	var verr *movies.ValidationError
	switch {
	case errors.As(err, &verr):
		httpError(w, http.StatusUnprocessableEntity, log, "%s", verr)
	case errors.Is(err, movies.ErrNotFound):
		httpError(w, http.StatusNotFound, log, "%s", movies.ErrNotFound)
	default:
		log.WithField("err", err).Error("service failure")
		httpError(w, http.StatusInternalServerError, log, "internal server error")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func httpError(w http.ResponseWriter, code int, log *log.Entry, format string, a ...any) {
	str := fmt.Sprintf(format, a...)
	log.Printf("returning error: %s", str)
	writeJSON(w, log, code, errorBody{Error: str})
}

func writeJSON(w http.ResponseWriter, log *log.Entry, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %s", err)
	}
}
