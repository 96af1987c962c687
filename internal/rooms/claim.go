package rooms

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"companion-call-demo/backend/pkg/redis"
)

// Claimer hands out exclusive ownership of room ids
type Claimer interface {
	// Claim takes the room for owner or returns *RoomInUseError
	Claim(ctx context.Context, roomID, owner string) error
	// Release gives the room back if owner still holds it
	Release(ctx context.Context, roomID, owner string) error
}

// MemoryClaimer keeps claims in process
type MemoryClaimer struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{owners: make(map[string]string)}
}

func (m *MemoryClaimer) Claim(_ context.Context, roomID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owners[roomID]; ok {
		return &RoomInUseError{RoomID: roomID}
	}
	m.owners[roomID] = owner
	return nil
}

func (m *MemoryClaimer) Release(_ context.Context, roomID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[roomID] == owner {
		delete(m.owners, roomID)
	}
	return nil
}

// releaseScript deletes the claim only when it still belongs to the caller
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaimer shares claims between instances. Claims expire after ttl so
// a crashed instance cannot hold a room forever.
type RedisClaimer struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClaimer(client *redis.Client, ttl time.Duration) *RedisClaimer {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisClaimer{client: client, ttl: ttl}
}

func claimKey(roomID string) string { return "room:" + roomID }

func (r *RedisClaimer) Claim(ctx context.Context, roomID, owner string) error {
	ok, err := r.client.SetNX(ctx, claimKey(roomID), owner, r.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return &RoomInUseError{RoomID: roomID}
	}
	return nil
}

func (r *RedisClaimer) Release(ctx context.Context, roomID, owner string) error {
	_, err := r.client.Eval(ctx, releaseScript, []string{claimKey(roomID)}, owner)
	return err
}
