package request

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// EventType discriminates change feed events.
type EventType string

const (
	// EventInsert signals a newly created request row.
	EventInsert EventType = "INSERT"
	// EventUpdate signals an updated request row.
	EventUpdate EventType = "UPDATE"
)

// Event is one change feed entry: the event type plus the full wire record.
type Event struct {
	Type   EventType   `json:"type"`
	Record wireRequest `json:"record"`
}

// Subscriber is the change feed surface the synchronization engine consumes.
// Every insert/update is delivered to all subscribers regardless of whose
// record changed; visibility filtering is the engine's job.
type Subscriber interface {
	Subscribe(onInsert, onUpdate func(Request)) (unsubscribe func())
}

type feedHandlers struct {
	onInsert func(Request)
	onUpdate func(Request)
}

// Feed is the Redis pub/sub change feed. All writes publish to one channel,
// so updates to the same record reach every subscriber in commit order.
// Delivery runs on a single dispatch goroutine per Feed.
type Feed struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
	stats   Stats

	mu     sync.Mutex
	subs   map[int]feedHandlers
	nextID int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeed constructs a Feed over the given pub/sub channel.
func NewFeed(client *redis.Client, channel string, logger *slog.Logger, stats Stats) *Feed {
	return &Feed{
		client:  client,
		channel: channel,
		logger:  logger,
		stats:   stats,
		subs:    make(map[int]feedHandlers),
	}
}

// Publish emits a change event to every connected subscriber, local and on
// other server instances.
func (f *Feed) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("request: marshal event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("request: publish event: %w", err)
	}
	return nil
}

// Start opens the subscription and begins dispatching events until the
// context is cancelled or Close is called. The underlying pub/sub connection
// re-subscribes transparently after drops; events missed while disconnected
// are repaired by the engine's periodic reconciliation pass.
func (f *Feed) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	pubsub := f.client.Subscribe(ctx, f.channel)
	go f.dispatch(ctx, pubsub)
}

func (f *Feed) dispatch(ctx context.Context, pubsub *redis.PubSub) {
	defer close(f.done)
	defer func() {
		if err := pubsub.Close(); err != nil {
			f.logger.Warn("close feed subscription", slog.Any("error", err))
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			f.deliver(msg.Payload)
		}
	}
}

func (f *Feed) deliver(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		f.logger.Warn("decode change event", slog.Any("error", err))
		return
	}
	req, err := ev.Record.toEntity()
	if err != nil {
		f.logger.Warn("translate change event", slog.Any("error", err))
		return
	}
	if f.stats != nil {
		f.stats.FeedEvent(string(ev.Type))
	}

	f.mu.Lock()
	handlers := make([]feedHandlers, 0, len(f.subs))
	for _, h := range f.subs {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		switch ev.Type {
		case EventInsert:
			if h.onInsert != nil {
				h.onInsert(req)
			}
		case EventUpdate:
			if h.onUpdate != nil {
				h.onUpdate(req)
			}
		default:
			f.logger.Warn("unknown change event type", slog.String("type", string(ev.Type)))
			return
		}
	}
}

// Subscribe registers insert/update handlers and returns the unsubscribe
// handle. Handlers run on the dispatch goroutine and must not block.
func (f *Feed) Subscribe(onInsert, onUpdate func(Request)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = feedHandlers{onInsert: onInsert, onUpdate: onUpdate}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Close stops dispatching and waits for the dispatch goroutine to exit.
func (f *Feed) Close() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
}

var _ Subscriber = (*Feed)(nil)
var _ Publisher = (*Feed)(nil)
