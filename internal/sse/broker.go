// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/annota/internal/history"
	"github.com/starford/annota/internal/layers"
	"github.com/starford/annota/internal/store"
)

// Event types sent to clients.
const (
	TypeAnnotationCreated = "annotation.created"
	TypeAnnotationUpdated = "annotation.updated"
	TypeAnnotationDeleted = "annotation.deleted"
	TypeHistoryChanged    = "history.changed"
	TypeSnapshotUpdated   = "snapshot.updated"
)

// Defaults for NewBroker.
const (
	DefaultSnapshotThrottle = 2 * time.Second
	DefaultHeartbeat        = 15 * time.Second
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single loop goroutine owns the client set, the frame sequence and the
// snapshot revision. Public methods talk to it over channels.
type Broker struct {
	snapshotMin time.Duration
	heartbeat   time.Duration
	logger      *slog.Logger

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan store.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithHeartbeat sets the keepalive comment interval. Zero disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// NewBroker starts a broker. At most one snapshot.updated is sent per
// snapshotThrottle; changes inside the window are announced when it closes.
func NewBroker(snapshotThrottle time.Duration, opts ...Option) *Broker {
	if snapshotThrottle <= 0 {
		snapshotThrottle = DefaultSnapshotThrottle
	}

	b := &Broker{
		snapshotMin:   snapshotThrottle,
		heartbeat:     DefaultHeartbeat,
		logger:        slog.New(slog.DiscardHandler),
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan store.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// frame encodes one SSE message. The id lets clients detect gaps.
func frame(seq uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\nid: %d\ndata: %s\n\n", event.Type, seq, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq          uint64
		revision     uint64
		lastSnapshot time.Time
		pending      bool
		trailing     *time.Timer
		trailingC    <-chan time.Time
	)

	broadcast := func(event Event) {
		seq++
		raw, err := frame(seq, event)
		if err != nil {
			b.logger.Warn("sse: encode event failed", slog.String("type", event.Type), slog.String("error", err.Error()))
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				b.logger.Debug("sse: client buffer full, event dropped", slog.String("type", event.Type))
			}
		}
	}
	snapshot := func(now time.Time) {
		lastSnapshot = now
		pending = false
		broadcast(Event{Type: TypeSnapshotUpdated, Data: map[string]uint64{"revision": revision}})
	}

	for {
		select {
		case <-b.stopCh:
			if trailing != nil {
				trailing.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.changeCh:
			for _, a := range ev.Created {
				broadcast(Event{Type: TypeAnnotationCreated, Data: a})
			}
			for _, c := range ev.Updated {
				broadcast(Event{Type: TypeAnnotationUpdated, Data: c})
			}
			for _, a := range ev.Deleted {
				broadcast(Event{Type: TypeAnnotationDeleted, Data: map[string]string{"id": a.ID}})
			}

			revision++
			now := time.Now()
			if wait := b.snapshotMin - now.Sub(lastSnapshot); wait <= 0 {
				snapshot(now)
			} else if !pending {
				pending = true
				if trailing == nil {
					trailing = time.NewTimer(wait)
					trailingC = trailing.C
				} else {
					trailing.Reset(wait)
				}
			}

		case now := <-trailingC:
			if pending {
				snapshot(now)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// AnnotationsChanged publishes one event per changed annotation followed by
// a throttled snapshot.updated.
func (b *Broker) AnnotationsChanged(ev store.Event) {
	if b.closed.Load() || ev.Empty() {
		return
	}
	select {
	case b.changeCh <- ev:
	case <-b.stopped:
	}
}

// LayerChanged publishes layer.created, layer.updated or layer.deleted.
func (b *Broker) LayerChanged(ev layers.Event) {
	b.Publish(Event{Type: "layer." + string(ev.Type), Data: ev.Layer})
}

// HistoryChanged publishes the new undo/redo state.
func (b *Broker) HistoryChanged(st history.State) {
	b.Publish(Event{Type: TypeHistoryChanged, Data: st})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
