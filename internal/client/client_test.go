package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dannyrandall/movies-realtime/internal/handlers"
	"github.com/dannyrandall/movies-realtime/internal/hub"
	"github.com/dannyrandall/movies-realtime/internal/movies"
	"github.com/dannyrandall/movies-realtime/internal/service"
	"github.com/dannyrandall/movies-realtime/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*Client, *hub.Hub) {
	t.Helper()

	s, err := store.Open(context.Background(), store.SQLite, filepath.Join(t.TempDir(), "movies.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	h := hub.New()
	rt := &handlers.Router{Service: &service.Movies{Store: s, Notifier: h}, Hub: h, Health: s}
	srv := httptest.NewServer(rt.Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})

	return New(srv.URL + "/"), h
}

func input(title string, year int) movies.Input {
	return movies.Input{Title: &title, Year: &year}
}

func TestCRUD(t *testing.T) {
	c, _ := newTestAPI(t)
	ctx := context.Background()

	created, err := c.Create(ctx, input("Dune", 1984))
	require.NoError(t, err)
	assert.Equal(t, movies.Movie{ID: 1, Title: "Dune", Year: 1984}, created)

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := c.Update(ctx, created.ID, input("Dune", 2021))
	require.NoError(t, err)
	assert.Equal(t, 2021, updated.Year)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []movies.Movie{updated}, list)

	deleted, err := c.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, deleted)

	_, err = c.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, movies.ErrNotFound)

	_, err = c.Get(ctx, created.ID)
	assert.ErrorIs(t, err, movies.ErrNotFound)
}

func TestValidationErrorIsAPIError(t *testing.T) {
	c, _ := newTestAPI(t)

	title := "Dune"
	_, err := c.Create(context.Background(), movies.Input{Title: &title})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "invalid year: field required", apiErr.Message)
	assert.False(t, apiErr.Temporary())
	assert.NotErrorIs(t, err, movies.ErrNotFound)
}

func TestWatch(t *testing.T) {
	c, h := newTestAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan movies.Event, 3)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(ev movies.Event) { events <- ev })
	}()
	require.Eventually(t, func() bool { return h.Len() == 1 }, 5*time.Second, 5*time.Millisecond)

	m, err := c.Create(context.Background(), input("Heat", 1995))
	require.NoError(t, err)
	_, err = c.Delete(context.Background(), m.ID)
	require.NoError(t, err)

	assert.Equal(t, movies.Event{Type: movies.EventCreated, Data: m}, <-events)
	assert.Equal(t, movies.Event{Type: movies.EventDeleted, Data: m}, <-events)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	require.Eventually(t, func() bool { return h.Len() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestWatchUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1")
	err := c.Watch(context.Background(), func(movies.Event) {})
	assert.Error(t, err)
}

func TestAPIErrorTemporary(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: http.StatusInternalServerError}).Temporary())
	assert.True(t, (&APIError{StatusCode: http.StatusTooManyRequests}).Temporary())
	assert.False(t, (&APIError{StatusCode: http.StatusNotFound}).Temporary())
	assert.Equal(t, "bad response: status code 502", (&APIError{StatusCode: 502}).Error())
}
