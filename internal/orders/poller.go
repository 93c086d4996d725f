// Package orders follows a freshly created order until its payment is
// confirmed.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/monitoring"
	"github.com/kirinyoku/ticksy/internal/state"
)

const DefaultInterval = 5 * time.Second

type Status string

const (
	StatusLoading  Status = "loading"
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

// Terminal reports whether polling stops in this status.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusNotFound || s == StatusFailed
}

type State struct {
	Status Status
	Order  *domain.Order
	Error  string
	// Fetches counts completed order lookups.
	Fetches int
}

type API interface {
	Get(ctx context.Context, path string, out any) error
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// Poller fetches an order immediately and then once per interval until it
// is paid, missing or a request fails.
type Poller struct {
	api       API
	orderID   string
	interval  time.Duration
	logger    *slog.Logger
	container *state.Container[State]
}

func NewPoller(api API, orderID string, logger *slog.Logger, opts ...Option) *Poller {
	p := &Poller{
		api:       api,
		orderID:   orderID,
		interval:  DefaultInterval,
		logger:    logger,
		container: state.New(State{Status: StatusLoading}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Container() *state.Container[State] { return p.container }

// Run polls until a terminal status is reached or ctx is cancelled. It
// returns the paid order, ErrOrderNotFound, the request error, or
// ctx.Err().
func (p *Poller) Run(ctx context.Context) (*domain.Order, error) {
	const op = "orders.Poller.Run"

	log := p.logger.With("order_id", p.orderID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		order, err := p.fetch(ctx)
		st := p.container.Snapshot()

		switch st.Status {
		case StatusPaid:
			log.Info("order paid", "receipt", order.MpesaReceipt, "fetches", st.Fetches)
			return order, nil
		case StatusNotFound:
			log.Warn("order not found")
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		case StatusFailed:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("order lookup failed", "error", err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		log.Debug("order still pending", "fetches", st.Fetches)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) fetch(ctx context.Context) (*domain.Order, error) {
	var order domain.Order
	err := p.api.Get(ctx, "/orders/"+url.PathEscape(p.orderID), &order)

	switch {
	case errors.Is(err, apiclient.ErrNotFound):
		monitoring.ObserveOrderPoll(string(StatusNotFound))
		p.container.Update(func(st *State) {
			st.Fetches++
			st.Status = StatusNotFound
			st.Error = apiclient.Message(err)
		})
		return nil, err
	case err != nil:
		monitoring.ObserveOrderPoll(string(StatusFailed))
		p.container.Update(func(st *State) {
			st.Fetches++
			st.Status = StatusFailed
			st.Error = apiclient.Message(err)
		})
		return nil, err
	}

	status := StatusPending
	if order.Status == domain.OrderPaid {
		status = StatusPaid
	}
	monitoring.ObserveOrderPoll(string(status))

	p.container.Update(func(st *State) {
		st.Fetches++
		st.Status = status
		st.Order = &order
		st.Error = ""
	})

	return &order, nil
}
