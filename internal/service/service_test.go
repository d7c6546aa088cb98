package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dannyrandall/movies-realtime/internal/movies"
	"github.com/dannyrandall/movies-realtime/internal/store/mock"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcast struct {
	eventType string
	payload   interface{}
}

type recordingNotifier struct {
	sent    []broadcast
	ctxErrs []error
	err     error
}

func (n *recordingNotifier) Broadcast(ctx context.Context, eventType string, payload interface{}) error {
	n.sent = append(n.sent, broadcast{eventType, payload})
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.err
}

func input(title string, year int) movies.Input {
	return movies.Input{Title: &title, Year: &year}
}

func newTestService(t *testing.T) (*Movies, *mock.MockStore, *recordingNotifier) {
	ctrl := gomock.NewController(t)
	s := mock.NewMockStore(ctrl)
	n := &recordingNotifier{}
	return &Movies{Store: s, Notifier: n}, s, n
}

func TestCreate(t *testing.T) {
	svc, s, n := newTestService(t)

	s.EXPECT().
		Insert(gomock.Any(), "Dune", 1984).
		Return(int64(1), nil)

	m, err := svc.Create(context.Background(), input("Dune", 1984))
	require.NoError(t, err)

	dune := movies.Movie{ID: 1, Title: "Dune", Year: 1984}
	assert.Equal(t, dune, m)
	assert.Equal(t, []broadcast{{movies.EventCreated, dune}}, n.sent)
}

func TestCreateValidationSkipsStore(t *testing.T) {
	svc, _, n := newTestService(t)

	year := 1984
	_, err := svc.Create(context.Background(), movies.Input{Year: &year})

	var verr *movies.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "title", verr.Field)
	assert.Empty(t, n.sent)
}

func TestCreateStoreFailure(t *testing.T) {
	svc, s, n := newTestService(t)

	s.EXPECT().
		Insert(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(0), errors.New("connection refused"))

	_, err := svc.Create(context.Background(), input("Dune", 1984))
	require.Error(t, err)
	assert.NotErrorIs(t, err, movies.ErrNotFound)
	assert.Empty(t, n.sent)
}

func TestCreateSucceedsWhenBroadcastFails(t *testing.T) {
	svc, s, n := newTestService(t)
	n.err = errors.New("marshal failed")

	s.EXPECT().
		Insert(gomock.Any(), "Dune", 1984).
		Return(int64(7), nil)

	m, err := svc.Create(context.Background(), input("Dune", 1984))
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.ID)
}

func TestCreateWithoutNotifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := mock.NewMockStore(ctrl)
	svc := &Movies{Store: s}

	s.EXPECT().
		Insert(gomock.Any(), "Dune", 1984).
		Return(int64(1), nil)

	_, err := svc.Create(context.Background(), input("Dune", 1984))
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	svc, s, n := newTestService(t)

	s.EXPECT().
		Update(gomock.Any(), int64(1), "Dune", 2021).
		Return(true, nil)

	m, err := svc.Update(context.Background(), 1, input("Dune", 2021))
	require.NoError(t, err)

	dune := movies.Movie{ID: 1, Title: "Dune", Year: 2021}
	assert.Equal(t, dune, m)
	assert.Equal(t, []broadcast{{movies.EventUpdated, dune}}, n.sent)
}

func TestUpdateNotFound(t *testing.T) {
	svc, s, n := newTestService(t)

	s.EXPECT().
		Update(gomock.Any(), int64(9), "Dune", 2021).
		Return(false, nil)

	_, err := svc.Update(context.Background(), 9, input("Dune", 2021))
	assert.ErrorIs(t, err, movies.ErrNotFound)
	assert.Empty(t, n.sent)
}

func TestUpdateValidation(t *testing.T) {
	svc, _, n := newTestService(t)

	title := "Dune"
	_, err := svc.Update(context.Background(), 1, movies.Input{Title: &title})

	var verr *movies.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "year", verr.Field)
	assert.Empty(t, n.sent)
}

func TestDelete(t *testing.T) {
	svc, s, n := newTestService(t)

	dune := movies.Movie{ID: 1, Title: "Dune", Year: 1984}
	s.EXPECT().
		Delete(gomock.Any(), int64(1)).
		Return(dune, true, nil)

	m, err := svc.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, dune, m)
	assert.Equal(t, []broadcast{{movies.EventDeleted, dune}}, n.sent)
}

func TestDeleteNotFound(t *testing.T) {
	svc, s, n := newTestService(t)

	s.EXPECT().
		Delete(gomock.Any(), int64(1)).
		Return(movies.Movie{}, false, nil).
		Times(2)

	for i := 0; i < 2; i++ {
		_, err := svc.Delete(context.Background(), 1)
		assert.ErrorIs(t, err, movies.ErrNotFound)
	}
	assert.Empty(t, n.sent)
}

func TestListAndGet(t *testing.T) {
	svc, s, n := newTestService(t)

	list := []movies.Movie{{ID: 1, Title: "Dune", Year: 1984}}
	s.EXPECT().List(gomock.Any()).Return(list, nil)
	s.EXPECT().Get(gomock.Any(), int64(1)).Return(list[0], nil)
	s.EXPECT().Get(gomock.Any(), int64(2)).Return(movies.Movie{}, movies.ErrNotFound)

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, list, got)

	m, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, list[0], m)

	_, err = svc.Get(context.Background(), 2)
	assert.ErrorIs(t, err, movies.ErrNotFound)

	assert.Empty(t, n.sent)
}

func TestBroadcastIgnoresRequestDeadline(t *testing.T) {
	svc, s, n := newTestService(t)

	s.EXPECT().
		Insert(gomock.Any(), "Dune", 1984).
		Return(int64(1), nil)

	// The store call used up the request's time.
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancel()

	_, err := svc.Create(ctx, input("Dune", 1984))
	require.NoError(t, err)
	require.Len(t, n.sent, 1)
	assert.Equal(t, []error{nil}, n.ctxErrs)
}
