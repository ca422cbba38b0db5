package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a shared sliding window counter backed by a Redis sorted
// set, grounded on the original gateway's RedisMeterStore. Safe across
// replicas since the window lives in Redis rather than process memory.
type RedisStore struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRedisStore builds a RedisStore against an already-connected client.
func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window, now: time.Now}
}

func (s *RedisStore) Increment(ctx context.Context, user string, tokens int64) (int64, float64, error) {
	now := float64(s.now().UnixNano()) / 1e9
	key := fmt.Sprintf("attach:quota:%s", user)
	member := fmt.Sprintf("%f:%d", now, tokens)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: now, Member: member})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatFloat(now-s.window.Seconds(), 'f', -1, 64))
	rangeCmd := pipe.ZRangeWithScores(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, now, fmt.Errorf("quota redis pipeline: %w", err)
	}

	var total int64
	oldest := now
	for _, z := range rangeCmd.Val() {
		m, _ := z.Member.(string)
		if idx := strings.LastIndex(m, ":"); idx >= 0 {
			if tok, err := strconv.ParseInt(m[idx+1:], 10, 64); err == nil {
				total += tok
			}
		}
		if z.Score < oldest {
			oldest = z.Score
		}
	}
	return total, oldest, nil
}
