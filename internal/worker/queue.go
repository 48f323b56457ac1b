package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultMaxTries = 3

// JobQueue is the producer side of the worker.
type JobQueue struct {
	client *redis.Client
	queue  string
}

func NewJobQueue(client *redis.Client, queue string) *JobQueue {
	if queue == "" {
		queue = DefaultQueue
	}
	return &JobQueue{client: client, queue: queue}
}

func (q *JobQueue) Enqueue(ctx context.Context, jobType JobType, payload interface{}) (string, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Queue:     q.queue,
		Payload:   raw,
		MaxTries:  defaultMaxTries,
		CreatedAt: now,
		ProcessAt: now,
	}

	data, err := sonic.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := q.client.RPush(ctx, q.queue, data).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", jobType, err)
	}
	return job.ID, nil
}

func (q *JobQueue) Size(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, q.queue).Result()
}

func (q *JobQueue) DeadSize(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, DeadQueue).Result()
}
