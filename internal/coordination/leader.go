// Package coordination lets several hub replicas agree on which one runs the
// periodic maintenance work.
package coordination

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotLeader is returned by Renew when another instance holds the lease
var ErrNotLeader = stderrors.New("not leader")

const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Lease is a single-holder lock in Redis. The holder keeps it by renewing before
// the TTL runs out; a crashed holder loses it when the key expires.
type Lease struct {
	redis      *redis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

func NewLease(client *redis.Client, instanceID, key string, ttl time.Duration) *Lease {
	return &Lease{
		redis:      client,
		instanceID: instanceID,
		key:        key,
		ttl:        ttl,
	}
}

// TryAcquire takes the lease when it is free and renews it when this instance
// already holds it. It reports whether this instance holds the lease afterwards.
func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.redis.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	err = l.Renew(ctx)
	if stderrors.Is(err, ErrNotLeader) {
		return false, nil
	}
	return err == nil, err
}

// Renew extends the TTL if this instance still holds the lease
func (l *Lease) Renew(ctx context.Context) error {
	result, err := l.redis.Eval(ctx, renewScript, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrNotLeader
	}
	return nil
}

// Release gives the lease up if this instance holds it
func (l *Lease) Release(ctx context.Context) error {
	return l.redis.Eval(ctx, releaseScript, []string{l.key}, l.instanceID).Err()
}

func (l *Lease) InstanceID() string {
	return l.instanceID
}
