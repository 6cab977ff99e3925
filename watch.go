package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const rosterChannel = "roster_changes"

// rosterWatcher fans roster change notifications out to event stream clients.
type rosterWatcher struct {
	logger *zap.Logger

	mu   sync.Mutex
	subs map[chan string]struct{}
}

func newRosterWatcher(logger *zap.Logger) *rosterWatcher {
	return &rosterWatcher{logger: logger, subs: map[chan string]struct{}{}}
}

func (rw *rosterWatcher) subscribe() (<-chan string, func()) {
	ch := make(chan string, 8)
	rw.mu.Lock()
	rw.subs[ch] = struct{}{}
	rw.mu.Unlock()
	eventSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			rw.mu.Lock()
			delete(rw.subs, ch)
			rw.mu.Unlock()
			eventSubscribers.Dec()
		})
	}
}

// publish never blocks; a subscriber with a full buffer misses the event.
func (rw *rosterWatcher) publish(table string) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	for ch := range rw.subs {
		select {
		case ch <- table:
		default:
			rw.logger.Debug("dropping roster event for slow subscriber", zap.String("table", table))
		}
	}
}

// forward publishes every notification until ctx is done or notify closes.
// A nil notification means the connection was re-established and any change
// may have been missed, so both tables are announced.
func (rw *rosterWatcher) forward(ctx context.Context, notify <-chan *pq.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			if n == nil {
				rw.publish("students")
				rw.publish("cases")
				continue
			}
			rosterEvents.WithLabelValues(n.Extra).Inc()
			rw.publish(n.Extra)
		}
	}
}

func listenRoster(ctx context.Context, conn string, logger *zap.Logger) (*pq.Listener, error) {
	l := pq.NewListener(conn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("roster listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := l.Listen(rosterChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen %s: %w", rosterChannel, err)
	}
	go func() {
		t := time.NewTicker(90 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := l.Ping(); err != nil {
					logger.Warn("roster listener ping failed", zap.Error(err))
				}
			}
		}
	}()
	return l, nil
}

func handleEvents(rw *rosterWatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		events, unsubscribe := rw.subscribe()
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case table := <-events:
				fmt.Fprintf(w, "event: roster\ndata: %s\n\n", table)
				flusher.Flush()
			}
		}
	}
}
