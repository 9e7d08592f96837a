package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
)

const subscriberBuffer = 10

// StreamManager fans call events out to Server-Sent Events clients.
// Subscribers are grouped by session name; "" is the global topic.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards logs.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for topic. The returned func
// unregisters and closes it.
func (sm *StreamManager) Subscribe(topic string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, subscriberBuffer)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan string]struct{})
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

// Subscribers counts the clients of topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}

// Broadcast sends msg to the clients of topic and of the global topic.
// Slow clients lose the message instead of blocking the caller.
func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	send := func(subs map[chan string]struct{}) {
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE client buffer full, dropping message", "topic", topic)
			}
		}
	}
	send(sm.subscribers[topic])
	if topic != "" {
		send(sm.subscribers[""])
	}
}

// Sink returns an EventSink that broadcasts events on topic as JSON.
func (sm *StreamManager) Sink(topic string) ports.EventSink {
	return topicSink{sm: sm, topic: topic}
}

type topicSink struct {
	sm    *StreamManager
	topic string
}

func (t topicSink) Post(ctx context.Context, event domain.CallEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	t.sm.Broadcast(t.topic, string(payload))
	return nil
}

// ServeHTTP streams events. ?session=<name> selects a topic; without it
// the client receives every topic.
func (sm *StreamManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sm.ServeTopic(w, r, r.URL.Query().Get("session"))
}

// ServeTopic streams the events of topic until the client disconnects.
func (sm *StreamManager) ServeTopic(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := sm.Subscribe(topic)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sm.logger.Info("SSE client connected", "topic", topic)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			sm.logger.Info("SSE client disconnected", "topic", topic)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
