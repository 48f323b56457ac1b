package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type JobType string

const (
	JobTypeReviewArchive     JobType = "review_archive"
	JobTypeAttendanceArchive JobType = "attendance_archive"
	JobTypePasswordReset     JobType = "password_reset"
)

const (
	DefaultQueue = "field-review:jobs"
	DeadQueue    = "field-review:jobs:dead"
)

var ErrNoHandler = errors.New("no handler registered for job type")

type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	MaxTries  int             `json:"max_tries"`
	CreatedAt time.Time       `json:"created_at"`
	ProcessAt time.Time       `json:"process_at"`
}

// Decode unmarshals the job payload into dest.
func (j *Job) Decode(dest interface{}) error {
	if err := sonic.Unmarshal(j.Payload, dest); err != nil {
		return fmt.Errorf("job %s: decode %s payload: %w", j.ID, j.Type, err)
	}
	return nil
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient *redis.Client
	Queues      []string

	// How long a single BLPOP waits before the loop checks for shutdown.
	PollTimeout time.Duration
	JobTimeout  time.Duration

	// First retry delay; doubles with every attempt.
	RetryBase time.Duration
	Logger    *log.Logger
}

type Worker struct {
	client      *redis.Client
	handlers    map[JobType]JobHandler
	queues      []string
	pollTimeout time.Duration
	jobTimeout  time.Duration
	retryBase   time.Duration
	logger      *log.Logger
	now         func() time.Time

	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(config WorkerConfig) *Worker {
	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue}
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 5 * time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if config.RetryBase <= 0 {
		config.RetryBase = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}

	return &Worker{
		client:      config.RedisClient,
		handlers:    make(map[JobType]JobHandler),
		queues:      config.Queues,
		pollTimeout: config.PollTimeout,
		jobTimeout:  config.JobTimeout,
		retryBase:   config.RetryBase,
		logger:      config.Logger,
		now:         time.Now,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches concurrency consumer goroutines plus one goroutine that
// promotes delayed retries back onto their queues.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.logger.WithField("concurrency", concurrency).Info("starting worker")

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx)
	}

	w.wg.Add(1)
	go w.promoteLoop(ctx)
}

func (w *Worker) Stop() {
	w.logger.Info("stopping worker")
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.processNextJob(ctx); err != nil && ctx.Err() == nil {
			w.logger.WithError(err).Error("error processing job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) promoteLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, queue := range w.queues {
				if _, err := w.promoteDue(ctx, queue); err != nil && ctx.Err() == nil {
					w.logger.WithError(err).WithField("queue", queue).Warn("failed to promote delayed jobs")
				}
			}
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context) error {
	result, err := w.client.BLPop(ctx, w.pollTimeout, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return errors.New("invalid job result")
	}

	var job Job
	if err := sonic.UnmarshalString(result[1], &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}

	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	entry := w.logger.WithFields(log.Fields{"job_id": job.ID, "job_type": job.Type})

	if !exists {
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("%w: %s", ErrNoHandler, job.Type))
	}

	entry.Debug("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	if err := handler(jobCtx, job); err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			entry.WithError(err).WithField("attempt", job.Attempts).Warn("job failed, retrying")
			return w.retryJob(ctx, job)
		}

		entry.WithError(err).WithField("attempts", job.Attempts).Error("job failed permanently")
		return w.moveToDeadQueue(ctx, job, err)
	}

	entry.Info("job completed")
	return nil
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryBase * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = w.now().Add(delay)

	data, err := sonic.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.ZAdd(ctx, delayedKey(job.Queue), redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: data,
	}).Err()
}

// promoteDue moves delayed jobs whose time has come back onto queue.
func (w *Worker) promoteDue(ctx context.Context, queue string) (int, error) {
	key := delayedKey(queue)
	due, err := w.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(w.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, member := range due {
		// Only the consumer that removes the member pushes it.
		removed, err := w.client.ZRem(ctx, key, member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := w.client.RPush(ctx, queue, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

type deadJob struct {
	Job      *Job      `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	data, err := sonic.Marshal(deadJob{Job: job, Error: jobErr.Error(), FailedAt: w.now()})
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(ctx, DeadQueue, data).Err()
}

func delayedKey(queue string) string {
	return queue + ":delayed"
}
