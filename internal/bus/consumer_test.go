package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw, err := json.Marshal(PostCreated{PostID: "p1", AuthorID: "a1", Username: "alice"})
	require.NoError(t, err)
	env := Envelope{EventType: EventPostCreated, Timestamp: time.Now().UTC(), Data: raw}

	encoded, err := env.Encode()
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, EventPostCreated, decoded.EventType)

	var payload PostCreated
	require.NoError(t, json.Unmarshal(decoded.Data, &payload))
	require.Equal(t, "p1", payload.PostID)
	require.Equal(t, "a1", payload.AuthorID)
}

func TestConsumerDispatchesByEventType(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []string
	)
	consumer := NewConsumer(client, []string{"POST_TOPIC"}, "feed-service-group", 1, 50*time.Millisecond)
	consumer.Handle(EventPostCreated, func(ctx context.Context, env *Envelope) error {
		var p PostCreated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		mu.Lock()
		received = append(received, p.PostID)
		mu.Unlock()
		return nil
	})

	stop, err := consumer.Start(ctx)
	require.NoError(t, err)
	defer stop()

	pub := NewPublisher(client)
	require.NoError(t, pub.Publish(ctx, "POST_TOPIC", EventPostCreated, PostCreated{PostID: "p1", AuthorID: "a1"}))
	require.NoError(t, pub.Publish(ctx, "POST_TOPIC", EventPostCreated, PostCreated{PostID: "p2", AuthorID: "a1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"p1", "p2"}, received)
}

func TestConsumerSurvivesUnknownAndBrokenEvents(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		count int
	)
	consumer := NewConsumer(client, []string{"POST_TOPIC"}, "feed-service-group", 1, 50*time.Millisecond)
	consumer.Handle(EventLikeCreated, func(ctx context.Context, env *Envelope) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	stop, err := consumer.Start(ctx)
	require.NoError(t, err)
	defer stop()

	// garbage payload, unknown event type, then a good one: only the good one lands
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "POST_TOPIC",
		Values: map[string]any{"payload": "not json"},
	}).Err())
	pub := NewPublisher(client)
	require.NoError(t, pub.Publish(ctx, "POST_TOPIC", "user.renamed", map[string]string{"id": "u1"}))
	require.NoError(t, pub.Publish(ctx, "POST_TOPIC", EventLikeCreated, Engagement{PostID: "p1", UserID: "u2"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConsumerStartIsIdempotentOnGroup(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	first := NewConsumer(client, []string{"POST_TOPIC"}, "feed-service-group", 1, 50*time.Millisecond)
	stop1, err := first.Start(ctx)
	require.NoError(t, err)
	defer stop1()

	// second instance joining the same group must not fail on BUSYGROUP
	second := NewConsumer(client, []string{"POST_TOPIC"}, "feed-service-group", 1, 50*time.Millisecond)
	stop2, err := second.Start(ctx)
	require.NoError(t, err)
	defer stop2()
}
