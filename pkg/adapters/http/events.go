package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
)

// TopicTransactions carries one event per received transaction.
const TopicTransactions = "transactions"

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // topic -> set of channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(topic string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[topic]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		}
	}
}

// Subscribers returns the number of subscribers of a topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}

func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "topic", topic)
		}
	}
}

type transactionMessage struct {
	Signer      string    `json:"signer"`
	SigTime     time.Time `json:"sig_time"`
	ContentType string    `json:"content_type"`
}

// PublishTransaction broadcasts a received transaction on TopicTransactions.
func (sm *StreamManager) PublishTransaction(tx domain.Transaction) {
	b, err := json.Marshal(transactionMessage{Signer: tx.Signer, SigTime: tx.SigTime, ContentType: tx.ContentType})
	if err != nil {
		sm.logger.Error("Failed to encode transaction event", "error", err)
		return
	}
	sm.Broadcast(TopicTransactions, string(b))
}
