package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/checkout"
	"github.com/kirinyoku/ticksy/internal/config"
	"github.com/kirinyoku/ticksy/internal/export"
	"github.com/kirinyoku/ticksy/internal/orders"
	"github.com/kirinyoku/ticksy/internal/postgres"
	redisx "github.com/kirinyoku/ticksy/internal/redis"
	"github.com/kirinyoku/ticksy/internal/session"
	"github.com/kirinyoku/ticksy/internal/slice/admin"
	"github.com/kirinyoku/ticksy/internal/slice/attendees"
	"github.com/kirinyoku/ticksy/internal/slice/events"
	"github.com/kirinyoku/ticksy/internal/slice/profile"
	"github.com/kirinyoku/ticksy/internal/slice/tickets"
	"github.com/kirinyoku/ticksy/internal/slice/ui"
	"github.com/kirinyoku/ticksy/internal/storage"
	"github.com/kirinyoku/ticksy/internal/storage/file"
	pgstore "github.com/kirinyoku/ticksy/internal/storage/postgres"
	redisstore "github.com/kirinyoku/ticksy/internal/storage/redis"
)

// Client is the assembled client state layer: one API client, the session
// store and every slice, sharing the configured durable storage.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	API       *apiclient.Client
	Storage   storage.Storage
	Session   *session.Store
	Events    *events.Slice
	Tickets   *tickets.Slice
	Attendees *attendees.Slice
	Admin     *admin.Slice
	Profile   *profile.Slice
	UI        *ui.Slice
	Checkout  *checkout.Service
	Exports   *export.Handler

	closers []func()
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	storage  storage.Storage
	apiOpts  []apiclient.Option
	onExport func(export.Result)
}

// WithStorage overrides the configured storage driver.
func WithStorage(st storage.Storage) ClientOption {
	return func(o *clientOptions) { o.storage = st }
}

func WithAPIOptions(opts ...apiclient.Option) ClientOption {
	return func(o *clientOptions) { o.apiOpts = append(o.apiOpts, opts...) }
}

func WithExportNotify(fn func(export.Result)) ClientOption {
	return func(o *clientOptions) { o.onExport = fn }
}

func NewClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	const op = "app.NewClient"

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{cfg: cfg, logger: logger}

	st := o.storage
	if st == nil {
		var err error
		st, err = c.openStorage(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	c.Storage = st

	// The hook needs the session store, which needs the API client.
	var sess *session.Store

	apiOpts := append([]apiclient.Option{
		apiclient.WithUnauthorizedHook(func(ctx context.Context) {
			if sess != nil {
				sess.Expire(ctx)
			}
		}),
	}, o.apiOpts...)

	api, err := apiclient.New(apiclient.Config{BaseURL: cfg.API.BaseURL}, session.Tokens(st), logger, apiOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.API = api

	sess = session.New(st, api, logger)
	c.Session = sess

	c.Events = events.New(api, logger)
	c.Tickets = tickets.New(api, logger)
	c.Attendees = attendees.New(api, logger)
	c.Admin = admin.New(api, logger)
	c.Profile = profile.New(api, logger)
	c.Checkout = checkout.New(api, logger)

	c.UI = ui.New(cfg.UI.ToastTTL)
	c.closers = append(c.closers, c.UI.Close)

	var exportOpts []export.Option
	if o.onExport != nil {
		exportOpts = append(exportOpts, export.WithNotify(o.onExport))
	}
	c.Exports = export.New(cfg.UI.ExportDir, logger, exportOpts...)
	c.closers = append(c.closers, c.Exports.Attach(c.Attendees))

	c.Session.Load(ctx)

	return c, nil
}

func (c *Client) openStorage(ctx context.Context) (storage.Storage, error) {
	switch c.cfg.Storage.Driver {
	case config.StorageMemory:
		return storage.NewMemory(), nil

	case config.StorageRedis:
		rdb, err := redisx.Open(ctx, c.cfg.Redis)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		return redisstore.New(rdb, c.cfg.Storage.Profile), nil

	case config.StoragePostgres:
		pool, err := postgres.Open(ctx, c.cfg.Postgres, postgres.SessionPoolSize)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)

		st := pgstore.New(pool, c.cfg.Storage.Profile)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return st, nil
	}

	st, err := file.New(c.cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NewPoller starts tracking an order with the configured poll interval.
func (c *Client) NewPoller(orderID string) *orders.Poller {
	return orders.NewPoller(c.API, orderID, c.logger, orders.WithInterval(c.cfg.UI.PollInterval))
}

// Close releases timers, subscriptions and storage connections. It is safe
// to call more than once.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
