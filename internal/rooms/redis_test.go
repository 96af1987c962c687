package rooms

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-call-demo/backend/pkg/redis"
)

// requires a reachable redis; set TEST_REDIS_URL to run
func TestRedisClaimer(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	client, err := redis.NewClient(url)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	room := NewRoomID(time.Now(), nil)
	c := NewRedisClaimer(client, time.Minute)
	defer c.Release(ctx, room, "a")

	require.NoError(t, c.Claim(ctx, room, "a"))
	var inUse *RoomInUseError
	assert.ErrorAs(t, c.Claim(ctx, room, "b"), &inUse)

	require.NoError(t, c.Release(ctx, room, "b"))
	owner, err := client.Get(ctx, claimKey(room))
	require.NoError(t, err)
	assert.Equal(t, "a", owner)

	require.NoError(t, c.Release(ctx, room, "a"))
	_, err = client.Get(ctx, claimKey(room))
	assert.True(t, redis.IsNil(err))
}
