package request

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestFeed(t *testing.T) (*Feed, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	feed := NewFeed(client, "solicitacoes.changes", testLogger(), nil)
	feed.Start(context.Background())
	t.Cleanup(feed.Close)
	return feed, client
}

func TestFeedDeliversPublishedEvents(t *testing.T) {
	feed, _ := newTestFeed(t)

	var mu sync.Mutex
	var inserts, updates []Request
	unsubscribe := feed.Subscribe(
		func(req Request) {
			mu.Lock()
			inserts = append(inserts, req)
			mu.Unlock()
		},
		func(req Request) {
			mu.Lock()
			updates = append(updates, req)
			mu.Unlock()
		},
	)
	defer unsubscribe()

	req := validVacation()
	require.NoError(t, feed.Publish(context.Background(), Event{Type: EventInsert, Record: toWire(req)}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(inserts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	got := inserts[0]
	mu.Unlock()
	require.Equal(t, req.EmployeeID, got.EmployeeID)
	require.Equal(t, req.Kind, got.Kind)
	require.Equal(t, req.Status, got.Status)
	require.Equal(t, req.Days, got.Days)

	require.NoError(t, feed.Publish(context.Background(), Event{Type: EventUpdate, Record: toWire(req)}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFeedIgnoresMalformedPayloads(t *testing.T) {
	feed, client := newTestFeed(t)

	delivered := make(chan Request, 4)
	unsubscribe := feed.Subscribe(
		func(req Request) { delivered <- req },
		func(req Request) { delivered <- req },
	)
	defer unsubscribe()

	require.NoError(t, client.Publish(context.Background(), "solicitacoes.changes", "not json").Err())
	require.NoError(t, client.Publish(context.Background(), "solicitacoes.changes", `{"type":"DELETE","record":{}}`).Err())

	// A valid event published afterwards still arrives: bad payloads are
	// dropped without poisoning the dispatch loop.
	require.NoError(t, feed.Publish(context.Background(), Event{Type: EventInsert, Record: toWire(validVacation())}))
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("valid event was not delivered")
	}
	require.Empty(t, delivered)
}

func TestFeedUnsubscribeStopsDelivery(t *testing.T) {
	feed, _ := newTestFeed(t)

	delivered := make(chan Request, 4)
	unsubscribe := feed.Subscribe(func(req Request) { delivered <- req }, func(Request) {})

	require.NoError(t, feed.Publish(context.Background(), Event{Type: EventInsert, Record: toWire(validVacation())}))
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	unsubscribe()
	require.NoError(t, feed.Publish(context.Background(), Event{Type: EventInsert, Record: toWire(validVacation())}))
	select {
	case <-delivered:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}
