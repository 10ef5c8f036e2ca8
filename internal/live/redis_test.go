package live

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedisContainer(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	defer func() {
		if r := recover(); r != nil {
			t.Skipf("failed to start redis container: %v", r)
		}
	}()

	container, err := redismodule.Run(ctx, "redis:8-alpine")
	if err != nil {
		t.Skipf("failed to start redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Skipf("failed to get redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("failed to close redis client: %v", err)
		}
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})
	return client
}

type pushed struct {
	userID string
	event  string
	data   json.RawMessage
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes []pushed
}

func (r *recordingPusher) Push(_ context.Context, userID string, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, _ := payload.(json.RawMessage)
	r.pushes = append(r.pushes, pushed{userID: userID, event: event, data: raw})
	return nil
}

func (r *recordingPusher) snapshot() []pushed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pushed(nil), r.pushes...)
}

func TestRedisFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := setupRedisContainer(ctx, t)
	const channel = "taskpulse:test"

	local := &recordingPusher{}
	done := make(chan error, 1)
	go func() { done <- Subscribe(ctx, client, channel, local) }()

	require.Eventually(t, func() bool {
		counts, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && counts[channel] > 0
	}, 5*time.Second, 20*time.Millisecond)

	publisher := NewRedisPublisher(client, channel)
	require.NoError(t, publisher.Push(ctx, "user-1", "notification", map[string]any{"title": "24-Hour Deadline Alert"}))

	require.Eventually(t, func() bool { return len(local.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)

	got := local.snapshot()[0]
	assert.Equal(t, "user-1", got.userID)
	assert.Equal(t, "notification", got.event)
	assert.JSONEq(t, `{"title":"24-Hour Deadline Alert"}`, string(got.data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
