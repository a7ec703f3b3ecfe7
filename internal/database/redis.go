package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"weekly-rewards-api/internal/ledger"
)

// unredeemed marks an empty slot in a week hash.
const unredeemed = ""

// RedisStore is a ledger.Store backed by Redis. Each user has a marker key
// and each (user, week) a hash with one field per weekday index.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ ledger.Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if prefix == "" {
		prefix = "rewards"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) userKey(userID string) string {
	return r.prefix + ":user:" + userID
}

func (r *RedisStore) weekKey(userID string, weekKey time.Time) string {
	return r.prefix + ":week:" + userID + ":" + strconv.FormatInt(weekKey.UnixMilli(), 10)
}

func (r *RedisStore) UserExists(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.userKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) EnsureWeek(ctx context.Context, userID string, weekKey time.Time) (ledger.Week, bool, error) {
	key := r.weekKey(userID, weekKey)

	var created *redis.BoolCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, r.userKey(userID), "1", 0)
		// Field 0 doubles as the existence marker for the hash.
		created = pipe.HSetNX(ctx, key, "0", unredeemed)
		return nil
	})
	if err != nil {
		return ledger.Week{}, false, fmt.Errorf("failed to ensure week: %w", err)
	}

	week, _, err := r.GetWeek(ctx, userID, weekKey)
	if err != nil {
		return ledger.Week{}, false, err
	}
	return week, created.Val(), nil
}

func (r *RedisStore) GetWeek(ctx context.Context, userID string, weekKey time.Time) (ledger.Week, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.weekKey(userID, weekKey)).Result()
	if err != nil {
		return ledger.Week{}, false, fmt.Errorf("failed to get week: %w", err)
	}
	if len(fields) == 0 {
		return ledger.Week{}, false, nil
	}

	var week ledger.Week
	for field, value := range fields {
		if value == unredeemed {
			continue
		}
		index, err := strconv.Atoi(field)
		if err != nil || index < 0 || index >= len(week) {
			return ledger.Week{}, false, fmt.Errorf("week hash has invalid field %q", field)
		}
		micros, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return ledger.Week{}, false, fmt.Errorf("week hash field %q: %w", field, err)
		}
		t := time.UnixMicro(micros)
		week[index] = &t
	}
	return week, true, nil
}

// markScript writes a slot only when the week exists and the slot is empty.
var markScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if cur and cur ~= "" then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

func (r *RedisStore) MarkRedeemed(ctx context.Context, userID string, weekKey time.Time, index int, at time.Time) (bool, error) {
	n, err := markScript.Run(ctx, r.client,
		[]string{r.weekKey(userID, weekKey)},
		strconv.Itoa(index), strconv.FormatInt(at.UnixMicro(), 10),
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to mark redeemed: %w", err)
	}
	return n == 1, nil
}
