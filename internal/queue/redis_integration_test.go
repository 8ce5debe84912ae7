//go:build integration

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRedis(t *testing.T) *redis.Client {
	t.Helper()
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{Repository: "redis", Tag: "7-alpine"},
		func(hc *docker.HostConfig) {
			hc.AutoRemove = true
			hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
		})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	_ = resource.Expire(60)

	client := redis.NewClient(&redis.Options{Addr: resource.GetHostPort("6379/tcp")})
	pool.MaxWait = 30 * time.Second
	require.NoError(t, pool.Retry(func() error { return client.Ping(context.Background()).Err() }))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisQueue(t *testing.T) {
	client := openRedis(t)

	t.Run("publish then consume in order", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := NewRedisQueue(client, "test:fifo")
		q.block = 200 * time.Millisecond

		require.NoError(t, q.Publish(ctx, Message{Type: "scan", Body: []byte(`{"n":1}`)}))
		require.NoError(t, q.Publish(ctx, Message{Type: "scan", Body: []byte(`{"n":2}`)}))

		msgs, err := q.Consume(ctx)
		require.NoError(t, err)
		for _, want := range []string{`{"n":1}`, `{"n":2}`} {
			select {
			case msg := <-msgs:
				assert.Equal(t, "scan", msg.Type)
				assert.Equal(t, want, string(msg.Body))
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for message")
			}
		}
	})

	t.Run("list is capped", func(t *testing.T) {
		ctx := context.Background()
		q := NewRedisQueue(client, "test:capped")
		q.maxLen = 3
		for i := 0; i < 5; i++ {
			require.NoError(t, q.Publish(ctx, Message{Type: "scan", Body: []byte{byte('a' + i)}}))
		}
		n, err := client.LLen(ctx, "test:capped").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		oldest, err := client.LIndex(ctx, "test:capped", -1).Result()
		require.NoError(t, err)
		assert.Equal(t, "scan|c", oldest)
	})
}
