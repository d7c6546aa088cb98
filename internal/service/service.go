// Package service implements the movie operations. Every successful
// mutation is announced through a Notifier after it is stored.
package service

import (
	"context"
	"fmt"

	"github.com/dannyrandall/movies-realtime/internal/movies"
	"github.com/dannyrandall/movies-realtime/internal/store"
	log "github.com/sirupsen/logrus"
)

// Notifier delivers an event to realtime subscribers.
type Notifier interface {
	Broadcast(ctx context.Context, eventType string, payload interface{}) error
}

type Movies struct {
	Store    store.Store
	Notifier Notifier
}

func (s *Movies) List(ctx context.Context) ([]movies.Movie, error) {
	list, err := s.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return list, nil
}

func (s *Movies) Get(ctx context.Context, id int64) (movies.Movie, error) {
	m, err := s.Store.Get(ctx, id)
	if err != nil {
		return movies.Movie{}, fmt.Errorf("get movie %d: %w", id, err)
	}
	return m, nil
}

func (s *Movies) Create(ctx context.Context, in movies.Input) (movies.Movie, error) {
	if err := in.Validate(); err != nil {
		return movies.Movie{}, err
	}

	id, err := s.Store.Insert(ctx, *in.Title, *in.Year)
	if err != nil {
		return movies.Movie{}, fmt.Errorf("create movie: %w", err)
	}

	m := movies.Movie{ID: id, Title: *in.Title, Year: *in.Year}
	s.notify(ctx, movies.EventCreated, m)
	return m, nil
}

func (s *Movies) Update(ctx context.Context, id int64, in movies.Input) (movies.Movie, error) {
	if err := in.Validate(); err != nil {
		return movies.Movie{}, err
	}

	ok, err := s.Store.Update(ctx, id, *in.Title, *in.Year)
	switch {
	case err != nil:
		return movies.Movie{}, fmt.Errorf("update movie %d: %w", id, err)
	case !ok:
		return movies.Movie{}, fmt.Errorf("update movie %d: %w", id, movies.ErrNotFound)
	}

	m := movies.Movie{ID: id, Title: *in.Title, Year: *in.Year}
	s.notify(ctx, movies.EventUpdated, m)
	return m, nil
}

func (s *Movies) Delete(ctx context.Context, id int64) (movies.Movie, error) {
	m, ok, err := s.Store.Delete(ctx, id)
	switch {
	case err != nil:
		return movies.Movie{}, fmt.Errorf("delete movie %d: %w", id, err)
	case !ok:
		return movies.Movie{}, fmt.Errorf("delete movie %d: %w", id, movies.ErrNotFound)
	}

	s.notify(ctx, movies.EventDeleted, m)
	return m, nil
}

// notify never fails the mutation; delivery problems stay in the hub.
func (s *Movies) notify(ctx context.Context, eventType string, m movies.Movie) {
	if s.Notifier == nil {
		return
	}
	// The mutation is committed; delivery must not inherit the request's
	// remaining time.
	if err := s.Notifier.Broadcast(context.WithoutCancel(ctx), eventType, m); err != nil {
		log.WithFields(log.Fields{"type": eventType, "id": m.ID, "err": err}).Error("failed to broadcast event")
	}
}
