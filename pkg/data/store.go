package data

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/internal/metrics"
	"github.com/nuts-foundation/nuts-monitor/pkg/adapters/memory"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/ports"
)

// maxControllerDepth bounds the walk up a controller chain, which may contain cycles.
const maxControllerDepth = 10

// TopRoots is the number of roots reported by Counts.
const TopRoots = 10

// Store keeps three sliding windows of (1 hour, 1 minute), (1 day, 1 hour) and (30 days, 1 day)
// and counts transactions per root controller DID.
type Store struct {
	resolver ports.DIDResolver
	mapping  ports.MappingStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	windows []*slidingWindow

	// resolveMu serializes controller resolution so a new root is counted once.
	resolveMu sync.Mutex

	mu           sync.RWMutex
	didCount     map[string]uint32
	rootDIDCount uint32
}

// Option configures the Store.
type Option func(*Store)

// WithMappingStore replaces the in-memory DID to root cache, e.g. with a shared Redis cache.
func WithMappingStore(mapping ports.MappingStore) Option {
	return func(s *Store) {
		s.mapping = mapping
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics records added transactions and the root count.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for the windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store that resolves signers through resolver.
func NewStore(resolver ports.DIDResolver, opts ...Option) *Store {
	s := &Store{
		resolver: resolver,
		mapping:  memory.NewMappingStore(),
		logger:   logging.NewNop(),
		now:      time.Now,
		didCount: map[string]uint32{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.windows = []*slidingWindow{
		newSlidingWindow(time.Minute, time.Hour, time.Second, s.now),
		newSlidingWindow(time.Hour, 24*time.Hour, time.Minute, s.now),
		newSlidingWindow(24*time.Hour, 30*24*time.Hour, time.Minute, s.now),
	}
	return s
}

// Start slides the windows until ctx is done.
func (s *Store) Start(ctx context.Context) {
	for _, w := range s.windows {
		w.Start(ctx)
	}
}

// Add counts a transaction in the windows and for the root controller of its signer.
func (s *Store) Add(ctx context.Context, transaction domain.Transaction) {
	for _, w := range s.windows {
		w.AddCount(transaction.ContentType, transaction.SigTime)
	}
	if s.metrics != nil {
		s.metrics.Transactions.WithLabelValues(transaction.ContentType).Inc()
	}
	if transaction.Signer == "" {
		return
	}

	s.resolveMu.Lock()
	root, newRoot := s.resolveController(ctx, transaction.Signer, 0)
	s.resolveMu.Unlock()

	s.mu.Lock()
	if newRoot {
		s.rootDIDCount++
	}
	s.didCount[root]++
	roots := s.rootDIDCount
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RootDIDs.Set(float64(roots))
	}
}

// resolveController returns the root controller of did and whether it was seen for the first time.
// A DID that cannot be resolved is its own root.
func (s *Store) resolveController(ctx context.Context, did string, depth int) (string, bool) {
	root, err := s.mapping.Get(ctx, did)
	if err == nil {
		return root, false
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("Mapping store unavailable", "error", err)
	}

	root, newRoot := did, true
	if depth >= maxControllerDepth {
		s.logger.Warn("Controller chain too deep", "did", did)
	} else if result, err := s.resolver.DIDDocument(ctx, did); err != nil {
		s.logger.Error("Error resolving DID", "did", did, "error", err)
	} else {
		for _, controller := range result.Document.Controller {
			if controller != did {
				root, newRoot = s.resolveController(ctx, controller, depth+1)
				break
			}
		}
	}

	if err := s.mapping.Put(ctx, did, root); err != nil {
		s.logger.Warn("Failed to cache DID root", "did", did, "error", err)
	}
	return root, newRoot
}

// GetTransactions returns the series of the windows, smallest resolution first.
func (s *Store) GetTransactions() [3]map[string][]domain.DataPoint {
	var transactions [3]map[string][]domain.DataPoint
	for i, w := range s.windows {
		transactions[i] = w.Snapshot()
	}
	return transactions
}

// GetTransactionCounts returns the transaction count per root DID and the number of roots.
func (s *Store) GetTransactionCounts() (map[string]uint32, uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]uint32, len(s.didCount))
	for k, v := range s.didCount {
		counts[k] = v
	}
	return counts, s.rootDIDCount
}

// Aggregated returns the hourly, daily and monthly series as served to the browser.
func (s *Store) Aggregated() domain.AggregatedTransactions {
	windows := s.GetTransactions()
	convert := func(series map[string][]domain.DataPoint) []domain.TransactionDataPoint {
		result := make([]domain.TransactionDataPoint, 0)
		cts := make([]string, 0, len(series))
		for cty := range series {
			cts = append(cts, cty)
		}
		sort.Strings(cts)
		for _, cty := range cts {
			for _, dp := range series[cty] {
				result = append(result, domain.NewTransactionDataPoint(cty, dp))
			}
		}
		return result
	}
	return domain.AggregatedTransactions{
		Hourly:  convert(windows[0]),
		Daily:   convert(windows[1]),
		Monthly: convert(windows[2]),
	}
}

// Counts returns the number of roots and the top roots by transaction count, highest first.
func (s *Store) Counts() domain.TransactionCounts {
	counts, roots := s.GetTransactionCounts()

	perRoot := make([]domain.TransactionsPerRoot, 0, len(counts))
	for did, n := range counts {
		perRoot = append(perRoot, domain.TransactionsPerRoot{DID: did, Count: int(n)})
	}
	sort.Slice(perRoot, func(i, j int) bool {
		if perRoot[i].Count != perRoot[j].Count {
			return perRoot[i].Count > perRoot[j].Count
		}
		return perRoot[i].DID < perRoot[j].DID
	})
	if len(perRoot) > TopRoots {
		perRoot = perRoot[:TopRoots]
	}

	return domain.TransactionCounts{
		RootCount:           int(roots),
		TransactionsPerRoot: perRoot,
	}
}
