package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisOptions tunes mirror expiry. Zero fields take the defaults below.
type RedisOptions struct {
	KeyPrefix string
	TTL       time.Duration
	TTLJitter time.Duration
}

const (
	defaultKeyPrefix = "cart:"
	defaultTTL       = 24 * time.Hour
	defaultTTLJitter = 4 * time.Hour
)

// setIfNotOlder writes ARGV[1] unless the stored mirror carries a higher
// version than ARGV[2]. Returns 0 when the write was refused.
var setIfNotOlder = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, decoded = pcall(cjson.decode, current)
	if ok and type(decoded) == 'table' then
		local version = tonumber(decoded['version']) or 0
		if version > tonumber(ARGV[2]) then
			return 0
		end
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisStore mirrors carts as JSON. Reads slide the expiry forward so an
// active session keeps its mirror; idle ones lapse at staggered times.
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions
}

func NewRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.TTLJitter < 0 {
		opts.TTLJitter = 0
	}
	return &RedisStore{client: client, opts: opts}
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	data, err := r.client.GetEx(ctx, r.key(sessionID), r.ttl()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMirrorMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

// Set stores c unless the mirror already holds a newer version, in which
// case ErrStaleMirror is returned and the stored cart is kept.
func (r *RedisStore) Set(ctx context.Context, sessionID string, c *domain.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	written, err := setIfNotOlder.Run(ctx, r.client,
		[]string{r.key(sessionID)},
		data, c.Version, r.ttl().Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("%w: version %d", ErrStaleMirror, c.Version)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.opts.KeyPrefix + sessionID
}

func (r *RedisStore) ttl() time.Duration {
	if r.opts.TTLJitter == 0 {
		return r.opts.TTL
	}
	return r.opts.TTL + time.Duration(rand.Int63n(int64(r.opts.TTLJitter)+1))
}
