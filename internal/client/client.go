// Package client talks to the movies API over HTTP and follows its
// realtime event stream.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dannyrandall/movies-realtime/internal/movies"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bad response: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("bad response: status code %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match a 404 with errors.Is(err, movies.ErrNotFound).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return movies.ErrNotFound
	}
	return nil
}

// Temporary reports whether repeating the request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type errorBody struct {
	Error string `json:"error"`
}

type Client struct {
	rest    *resty.Client
	baseURL string
	dialer  *websocket.Dialer
}

// New returns a client for the API served at baseURL, e.g.
// "http://localhost:8080". Requests are traced with otelhttp.
func New(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetError(&errorBody{})

	return &Client{
		rest:    rest,
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
	}
}

func (c *Client) List(ctx context.Context) ([]movies.Movie, error) {
	var list []movies.Movie
	resp, err := c.rest.R().SetContext(ctx).SetResult(&list).Get("/movies")
	if err := check(resp, err, "list movies"); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Get(ctx context.Context, id int64) (movies.Movie, error) {
	var m movies.Movie
	resp, err := c.rest.R().SetContext(ctx).SetResult(&m).Get(fmt.Sprintf("/movies/%d", id))
	if err := check(resp, err, "get movie"); err != nil {
		return movies.Movie{}, err
	}
	return m, nil
}

func (c *Client) Create(ctx context.Context, in movies.Input) (movies.Movie, error) {
	var m movies.Movie
	resp, err := c.rest.R().SetContext(ctx).SetBody(in).SetResult(&m).Post("/movies")
	if err := check(resp, err, "create movie"); err != nil {
		return movies.Movie{}, err
	}
	return m, nil
}

func (c *Client) Update(ctx context.Context, id int64, in movies.Input) (movies.Movie, error) {
	var m movies.Movie
	resp, err := c.rest.R().SetContext(ctx).SetBody(in).SetResult(&m).Put(fmt.Sprintf("/movies/%d", id))
	if err := check(resp, err, "update movie"); err != nil {
		return movies.Movie{}, err
	}
	return m, nil
}

func (c *Client) Delete(ctx context.Context, id int64) (movies.Movie, error) {
	var m movies.Movie
	resp, err := c.rest.R().SetContext(ctx).SetResult(&m).Delete(fmt.Sprintf("/movies/%d", id))
	if err := check(resp, err, "delete movie"); err != nil {
		return movies.Movie{}, err
	}
	return m, nil
}

// Watch subscribes to the event stream and calls fn for every event until
// ctx is done or the connection fails. It returns nil if ctx ended it.
func (c *Client) Watch(ctx context.Context, fn func(movies.Event)) error {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return errors.Wrap(err, "parse websocket url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "dial event stream")
	}
	defer ws.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			ws.Close()
		case <-stop:
		}
	}()

	for {
		var ev movies.Event
		if err := ws.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read event")
		}
		fn(ev)
	}
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Message = body.Error
	}
	return errors.WithMessage(apiErr, op)
}
