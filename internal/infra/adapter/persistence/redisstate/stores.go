package redisstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"storywire/internal/repository"
	"storywire/internal/resilience/feedbreaker"
)

// BreakerStore is a feedbreaker.Store on Redis. Circuit records live in the
// hash "<prefix>:breaker"; each lock is its own key "<prefix>:lock:<name>" set
// with SET NX and a TTL, so a crashed holder cannot wedge a feed forever.
type BreakerStore struct {
	client    HashClient
	key       string
	prefix    string
	lockTTL   time.Duration
	opTimeout time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

var _ feedbreaker.Store = (*BreakerStore)(nil)

// errLockLost is returned by Unlock when the lock expired before release.
var errLockLost = errors.New("lock expired before release")

// unlockScript deletes a lock only while it still carries the caller's token.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// NewBreakerStore creates a store under prefix. lockTTL must exceed the breaker
// timeout; non-positive values fall back to DefaultLockTTL.
func NewBreakerStore(client HashClient, prefix string, lockTTL time.Duration) *BreakerStore {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &BreakerStore{
		client:    client,
		key:       key(prefix, "breaker"),
		prefix:    key(prefix, "lock"),
		lockTTL:   lockTTL,
		opTimeout: 2 * time.Second,
		tokens:    make(map[string]string),
	}
}

func (s *BreakerStore) lockKey(name string) string {
	return s.prefix + ":" + name
}

// Lock implements feedbreaker.Store. A held lock yields feedbreaker.ErrLocked.
func (s *BreakerStore) Lock(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey(name), token, s.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("Lock %s: %w", name, err)
	}
	if !ok {
		return feedbreaker.ErrLocked
	}
	s.mu.Lock()
	s.tokens[name] = token
	s.mu.Unlock()
	return nil
}

// Unlock implements feedbreaker.Store. Only a lock this store still owns is released.
func (s *BreakerStore) Unlock(name string) error {
	s.mu.Lock()
	token, ok := s.tokens[name]
	delete(s.tokens, name)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()
	n, err := s.client.Eval(ctx, unlockScript, []string{s.lockKey(name)}, token).Int64()
	if err != nil {
		return fmt.Errorf("Unlock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("Unlock %s: %w", name, errLockLost)
	}
	return nil
}

// GetData implements feedbreaker.Store. A missing record yields nil data.
func (s *BreakerStore) GetData(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	raw, err := s.client.HGet(ctx, s.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetData %s: %w", name, err)
	}
	return []byte(raw), nil
}

// SetData implements feedbreaker.Store.
func (s *BreakerStore) SetData(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.client.HSet(ctx, s.key, name, string(data)).Err(); err != nil {
		return fmt.Errorf("SetData %s: %w", name, err)
	}
	return nil
}

// ListData implements feedbreaker.Store.
func (s *BreakerStore) ListData() (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("ListData: %w", err)
	}
	out := make(map[string][]byte, len(all))
	for name, raw := range all {
		out[name] = []byte(raw)
	}
	return out, nil
}

// PollStateRepo is a repository.PollStateRepository on one Redis hash of RFC 3339 times.
type PollStateRepo struct {
	client HashClient
	key    string
}

var _ repository.PollStateRepository = (*PollStateRepo)(nil)

// NewPollStateRepo creates a repository under "<prefix>:polls".
func NewPollStateRepo(client HashClient, prefix string) *PollStateRepo {
	return &PollStateRepo{client: client, key: key(prefix, "polls")}
}

// LastPolls implements repository.PollStateRepository.
func (r *PollStateRepo) LastPolls(ctx context.Context, feedIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(feedIDs))
	if len(feedIDs) == 0 {
		return out, nil
	}
	vals, err := r.client.HMGet(ctx, r.key, feedIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("LastPolls: %w", err)
	}
	for i, v := range vals {
		if i >= len(feedIDs) {
			break
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		out[feedIDs[i]] = at
	}
	return out, nil
}

// MarkPolled implements repository.PollStateRepository.
func (r *PollStateRepo) MarkPolled(ctx context.Context, feedID string, at time.Time) error {
	if err := r.client.HSet(ctx, r.key, feedID, at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("MarkPolled %s: %w", feedID, err)
	}
	return nil
}
