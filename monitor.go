package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nuts-foundation/nuts-monitor/internal/config"
	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/internal/metrics"
	"github.com/nuts-foundation/nuts-monitor/internal/mocknode"
	apihttp "github.com/nuts-foundation/nuts-monitor/pkg/adapters/http"
	"github.com/nuts-foundation/nuts-monitor/pkg/adapters/nats"
	"github.com/nuts-foundation/nuts-monitor/pkg/adapters/redis"
	"github.com/nuts-foundation/nuts-monitor/pkg/client"
	"github.com/nuts-foundation/nuts-monitor/pkg/data"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/ports"
)

// StartedMessage is logged once the HTTP listener is bound, at every log level.
const StartedMessage = "Started HTTP server"

const shutdownTimeout = 5 * time.Second

// Monitor wires the node client, the transaction store and the HTTP server.
type Monitor struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	doer    client.HTTPRequestDoer

	client  *client.HTTPClient
	store   *data.Store
	server  *apihttp.Server
	mock    *mocknode.Node
	locker  ports.DistributedLocker
	handler http.Handler
}

// Option defines a functional option for configuring the Monitor.
type Option func(*Monitor)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMockNode serves n under /mock instead of a fresh standalone node.
func WithMockNode(n *mocknode.Node) Option {
	return func(m *Monitor) {
		m.mock = n
	}
}

// WithDoer replaces the HTTP client used to reach the node.
func WithDoer(doer client.HTTPRequestDoer) Option {
	return func(m *Monitor) {
		m.doer = doer
	}
}

// New creates a Monitor for cfg.
func New(cfg config.Config, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		cfg:     cfg,
		logger:  logging.NewNop(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(m)
	}

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	clientOpts := []client.Option{client.WithLogger(m.logger)}
	if m.doer != nil {
		clientOpts = append(clientOpts, client.WithDoer(m.doer))
	}
	m.client, err = client.New(clientCfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create node client: %w", err)
	}

	storeOpts := []data.Option{data.WithLogger(m.logger), data.WithMetrics(m.metrics)}
	if cfg.RedisAddr != "" {
		mapping := redis.New(cfg.RedisAddr)
		m.locker = redis.NewLocker(mapping.Client(), "nuts-monitor:")
		storeOpts = append(storeOpts, data.WithMappingStore(mapping))
	}
	m.store = data.NewStore(m.client, storeOpts...)

	assets, err := WebAssets(cfg.Live)
	if err != nil {
		return nil, err
	}
	serverOpts := []apihttp.Option{
		apihttp.WithLogger(m.logger),
		apihttp.WithMetrics(m.metrics),
		apihttp.WithAssets(assets),
		apihttp.WithVersion(Version),
	}
	if cfg.WithMockNode {
		if m.mock == nil {
			m.mock = mocknode.New()
		}
		serverOpts = append(serverOpts, apihttp.WithMockNode(m.mock.Handler()))
	}

	topology := client.NewTopologyService(m.client, client.WithTopologyLogger(m.logger))
	m.server, err = apihttp.NewServer(m.client, topology, m.store, serverOpts...)
	if err != nil {
		return nil, err
	}
	m.handler = m.server.Handler()
	return m, nil
}

// Handler returns the HTTP handler of the monitor.
func (m *Monitor) Handler() http.Handler {
	return m.handler
}

// Store returns the transaction statistics.
func (m *Monitor) Store() *data.Store {
	return m.store
}

// Add counts a transaction and publishes it to the event stream.
func (m *Monitor) Add(ctx context.Context, tx domain.Transaction) {
	m.store.Add(ctx, tx)
	m.server.Streams().PublishTransaction(tx)
}

// ListenAndServe listens on the configured addresses and serves until ctx is done.
func (m *Monitor) ListenAndServe(ctx context.Context) error {
	var listeners []net.Listener
	for _, addr := range m.cfg.Addrs() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listeners = append(listeners, ln)
	}
	return m.Serve(ctx, listeners...)
}

// Serve runs the HTTP server on every listener together with the history loader and, when
// configured, the transaction stream consumer. It returns after ctx is done and the servers shut down.
func (m *Monitor) Serve(ctx context.Context, listeners ...net.Listener) error {
	if len(listeners) == 0 {
		return errors.New("no listeners")
	}
	m.store.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	addrs := make([]string, 0, len(listeners))
	for _, ln := range listeners {
		srv := &http.Server{
			Handler:           m.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		addrs = append(addrs, ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	// the harness waits for this line, whatever the configured level
	m.logger.Log(ctx, logging.LevelAlways, StartedMessage, "addrs", addrs, "version", Version)

	g.Go(func() error {
		if err := m.loadHistory(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	if m.cfg.NutsNodeStreamAddr != "" {
		consumer := nats.NewConsumer(m.cfg.NutsNodeStreamAddr, m, nats.WithLogger(m.logger))
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Monitor) loadHistory(ctx context.Context) error {
	opts := []HistoryOption{WithHistoryLogger(m.logger)}
	if m.locker != nil {
		opts = append(opts, WithLocker(m.locker))
	}
	return NewHistoryLoader(m.client, m.store, opts...).Run(ctx)
}
