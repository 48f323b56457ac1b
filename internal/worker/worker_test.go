package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"field-review/backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWorker(t *testing.T) (*Worker, *JobQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := log.New()
	logger.SetOutput(io.Discard)

	w := NewWorker(WorkerConfig{
		RedisClient: client,
		PollTimeout: 100 * time.Millisecond,
		RetryBase:   time.Minute,
		Logger:      logger,
	})
	return w, NewJobQueue(client, ""), mr
}

type fakeReviews struct {
	mu    sync.Mutex
	saved []models.ReviewRecord
	err   error
}

func (f *fakeReviews) Save(ctx context.Context, rec *models.ReviewRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *rec)
	return nil
}

func (f *fakeReviews) ListByReviewer(ctx context.Context, email string, limit int) ([]models.ReviewRecord, error) {
	return nil, nil
}

func (f *fakeReviews) CountByCategory(ctx context.Context) (map[string]int64, error) {
	return nil, nil
}

type fakeAttendance struct {
	saved []models.AttendanceRecord
}

func (f *fakeAttendance) Save(ctx context.Context, rec *models.AttendanceRecord) error {
	f.saved = append(f.saved, *rec)
	return nil
}

func (f *fakeAttendance) Find(ctx context.Context, email, day string) (*models.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeAttendance) ListByEmail(ctx context.Context, email string, limit int) ([]models.AttendanceRecord, error) {
	return nil, nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) SendPasswordReset(ctx context.Context, email string) error {
	f.sent = append(f.sent, email)
	return nil
}

func TestJobQueue_Enqueue(t *testing.T) {
	_, queue, mr := setupWorker(t)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, JobTypePasswordReset, PasswordResetPayload{Email: "a@example.org"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	size, err := queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	items, err := mr.List(DefaultQueue)
	require.NoError(t, err)

	var job Job
	require.NoError(t, sonic.UnmarshalString(items[0], &job))
	assert.Equal(t, JobTypePasswordReset, job.Type)
	assert.Equal(t, DefaultQueue, job.Queue)
	assert.Equal(t, 3, job.MaxTries)

	var payload PasswordResetPayload
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, "a@example.org", payload.Email)
}

func TestWorker_ProcessesArchiveJobs(t *testing.T) {
	w, queue, _ := setupWorker(t)
	ctx := context.Background()

	reviews := &fakeReviews{}
	attendance := &fakeAttendance{}
	notifier := &fakeNotifier{}
	(&ArchiveHandlers{Reviews: reviews, Attendance: attendance, Notifier: notifier}).Register(w)

	rec := models.ReviewRecord{ID: uuid.Must(uuid.NewV4()), TaskID: "4", Comment: "Agreed - 70% rating"}
	_, err := queue.Enqueue(ctx, JobTypeReviewArchive, rec)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, JobTypeAttendanceArchive, models.AttendanceRecord{Email: "a@example.org", Day: "2025-05-10"})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, JobTypePasswordReset, PasswordResetPayload{Email: "b@example.org"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.processNextJob(ctx))
	}

	require.Len(t, reviews.saved, 1)
	assert.Equal(t, "Agreed - 70% rating", reviews.saved[0].Comment)
	require.Len(t, attendance.saved, 1)
	assert.Equal(t, "2025-05-10", attendance.saved[0].Day)
	assert.Equal(t, []string{"b@example.org"}, notifier.sent)
}

func TestWorker_EmptyQueueIsNotAnError(t *testing.T) {
	w, _, _ := setupWorker(t)
	assert.NoError(t, w.processNextJob(context.Background()))
}

func TestWorker_RetryThenDeadQueue(t *testing.T) {
	w, queue, mr := setupWorker(t)
	ctx := context.Background()

	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	reviews := &fakeReviews{err: errors.New("database down")}
	w.RegisterHandler(JobTypeReviewArchive, (&ArchiveHandlers{Reviews: reviews}).HandleReviewArchive)

	_, err := queue.Enqueue(ctx, JobTypeReviewArchive, models.ReviewRecord{TaskID: "1"})
	require.NoError(t, err)

	// Attempt 1 fails and is delayed by the retry base.
	require.NoError(t, w.processNextJob(ctx))
	members, err := mr.ZMembers(delayedKey(DefaultQueue))
	require.NoError(t, err)
	require.Len(t, members, 1)

	moved, err := w.promoteDue(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Zero(t, moved, "retry must wait for its delay")

	now = now.Add(time.Minute)
	moved, err = w.promoteDue(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	// Attempt 2 fails and waits twice as long.
	require.NoError(t, w.processNextJob(ctx))
	now = now.Add(time.Minute)
	moved, _ = w.promoteDue(ctx, DefaultQueue)
	assert.Zero(t, moved)
	now = now.Add(time.Minute)
	moved, _ = w.promoteDue(ctx, DefaultQueue)
	assert.Equal(t, 1, moved)

	// Attempt 3 exhausts MaxTries.
	require.NoError(t, w.processNextJob(ctx))

	dead, err := queue.DeadSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
	assert.False(t, mr.Exists(delayedKey(DefaultQueue)))
}

func TestWorker_UnknownJobTypeGoesToDeadQueue(t *testing.T) {
	w, queue, mr := setupWorker(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, JobType("unknown"), map[string]string{})
	require.NoError(t, err)
	require.NoError(t, w.processNextJob(ctx))

	items, err := mr.List(DeadQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], ErrNoHandler.Error())
}

func TestWorker_StartStop(t *testing.T) {
	w, queue, _ := setupWorker(t)

	done := make(chan string, 1)
	w.RegisterHandler(JobTypePasswordReset, func(ctx context.Context, job *Job) error {
		var p PasswordResetPayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		done <- p.Email
		return nil
	})

	w.Start(context.Background(), 2)
	defer w.Stop()

	_, err := queue.Enqueue(context.Background(), JobTypePasswordReset, PasswordResetPayload{Email: "c@example.org"})
	require.NoError(t, err)

	select {
	case email := <-done:
		assert.Equal(t, "c@example.org", email)
	case <-time.After(3 * time.Second):
		t.Fatal("job was not processed")
	}
}
