// Package hub fans out movie mutation events to realtime subscribers.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dannyrandall/movies-realtime/internal/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many subscribers a single Broadcast writes
// to at once.
const DefaultConcurrency = 16

// Subscriber is a registered receiver of broadcast messages.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	Close() error
}

type message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub is the set of connected subscribers. The zero value is not usable,
// create one with New.
type Hub struct {
	Concurrency int

	mu   sync.Mutex
	subs map[Subscriber]struct{}
}

func New() *Hub {
	return &Hub{
		Concurrency: DefaultConcurrency,
		subs:        make(map[Subscriber]struct{}),
	}
}

func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Inc()
	log.WithFields(log.Fields{"subscriber": s.ID(), "subscribers": n}).Info("registered subscriber")
}

// Unregister removes s, reporting whether it was registered.
func (h *Hub) Unregister(s Subscriber) bool {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		metrics.Subscribers.Dec()
		log.WithFields(log.Fields{"subscriber": s.ID(), "subscribers": n}).Info("unregistered subscriber")
	}
	return ok
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends {type, data} to every subscriber registered when it is
// called, and returns once each of them has been attempted. A subscriber
// whose send fails is unregistered and closed; the others are unaffected.
func (h *Hub) Broadcast(ctx context.Context, eventType string, payload interface{}) error {
	msg, err := json.Marshal(message{Type: eventType, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	subs := h.snapshot()
	metrics.BroadcastsTotal.WithLabelValues(eventType).Inc()
	log.WithFields(log.Fields{"type": eventType, "subscribers": len(subs)}).Debug("broadcasting event")

	var g errgroup.Group
	if h.Concurrency > 0 {
		g.SetLimit(h.Concurrency)
	}
	for _, s := range subs {
		s := s
		g.Go(func() error {
			if err := s.Send(ctx, msg); err != nil {
				h.drop(s, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close unregisters and closes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = make(map[Subscriber]struct{})
	h.mu.Unlock()

	metrics.Subscribers.Sub(float64(len(subs)))
	for _, s := range subs {
		if err := s.Close(); err != nil {
			log.WithFields(log.Fields{"subscriber": s.ID(), "err": err}).Debug("closing subscriber")
		}
	}
}

func (h *Hub) snapshot() []Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]Subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	return subs
}

func (h *Hub) drop(s Subscriber, err error) {
	metrics.DeliveryFailuresTotal.Inc()
	log.WithFields(log.Fields{"subscriber": s.ID(), "err": err}).Warn("failed to deliver event, dropping subscriber")

	if h.Unregister(s) {
		s.Close()
	}
}
