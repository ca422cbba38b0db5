package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a shared FIFO queue backed by an LPUSH/BRPOP Redis list,
// grounded on the original gateway's _RedisQueue.
type RedisQueue struct {
	client *redis.Client
	name   string
}

// NewRedisQueue builds a RedisQueue against the named list key.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = "attach:queue"
	}
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) Put(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.client.LPush(ctx, q.name, data).Err()
}

func (q *RedisQueue) Get(ctx context.Context) (Job, error) {
	res, err := q.client.BRPop(ctx, 0, q.name).Result()
	if err != nil {
		return Job{}, err
	}
	if len(res) < 2 {
		return Job{}, fmt.Errorf("unexpected BRPOP result shape: %v", res)
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}
