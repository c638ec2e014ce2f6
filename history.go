package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/adapters/nats"
	"github.com/nuts-foundation/nuts-monitor/pkg/data"
	"github.com/nuts-foundation/nuts-monitor/pkg/ports"
)

const (
	// HistoryPageSize is the number of transactions requested per page.
	HistoryPageSize = 100
	// DefaultHistoryRetryInterval is the wait after a failed page before trying again.
	DefaultHistoryRetryInterval = 10 * time.Second

	historyLockKey = "history"
	historyLockTTL = 5 * time.Minute
)

// TransactionLister pages through the transactions of the node.
type TransactionLister interface {
	ListTransactions(ctx context.Context, start, end int) ([]string, error)
}

// HistoryLoader feeds every transaction the node already holds into a sink.
type HistoryLoader struct {
	lister TransactionLister
	sink   nats.Sink
	locker ports.DistributedLocker
	logger *slog.Logger
	retry  time.Duration

	// offset is the lamport clock the next page starts at. It survives retries so a failing page
	// does not count earlier pages twice.
	offset int
	loaded int
}

// HistoryOption configures a HistoryLoader.
type HistoryOption func(*HistoryLoader)

func WithHistoryLogger(logger *slog.Logger) HistoryOption {
	return func(h *HistoryLoader) {
		h.logger = logger
	}
}

// WithLocker makes replicas sharing a backend load the history one at a time. Every replica
// still loads all of it into its own windows.
func WithLocker(locker ports.DistributedLocker) HistoryOption {
	return func(h *HistoryLoader) {
		h.locker = locker
	}
}

func WithRetryInterval(d time.Duration) HistoryOption {
	return func(h *HistoryLoader) {
		h.retry = d
	}
}

// NewHistoryLoader creates a loader reading from lister.
func NewHistoryLoader(lister TransactionLister, sink nats.Sink, opts ...HistoryOption) *HistoryLoader {
	h := &HistoryLoader{
		lister: lister,
		sink:   sink,
		logger: logging.NewNop(),
		retry:  DefaultHistoryRetryInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run loads all pages, retrying failed pages until ctx is done.
func (h *HistoryLoader) Run(ctx context.Context) error {
	for {
		err := h.load(ctx)
		if err == nil {
			h.logger.Info("Loaded transaction history", "count", h.loaded)
			return nil
		}
		h.logger.Error("Failed to load transaction history", "error", err, "offset", h.offset, "retry_in", h.retry)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.retry):
		}
	}
}

func (h *HistoryLoader) load(ctx context.Context) error {
	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, historyLockKey, historyLockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire history lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				h.logger.Warn("Failed to release history lock", "error", err)
			}
		}()
	}

	for {
		page, err := h.lister.ListTransactions(ctx, h.offset, h.offset+HistoryPageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		for _, jws := range page {
			tx, err := data.FromJWS(jws)
			if err != nil {
				h.logger.Warn("Skipping unparsable transaction", "error", err)
				continue
			}
			h.sink.Add(ctx, *tx)
			h.loaded++
		}
		h.offset += HistoryPageSize
	}
}
