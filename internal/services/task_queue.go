package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/ShaharSGA/Project/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeLearningRefresh = "learning:refresh"

	// short delay so a burst of approvals tends to land before the rebuild reads
	learningTaskDelay = 2 * time.Second
)

// LearningTask asks for the corpus of one client and agent to be rebuilt.
type LearningTask struct {
	ClientID   string `json:"client_id"`
	AgentType  string `json:"agent_type"`
	FeedbackID uint   `json:"feedback_id,omitempty"`
}

// TaskQueue carries learning refresh tasks away from the request path.
type TaskQueue interface {
	Enqueue(task *LearningTask) error
	IsAsync() bool
	Close() error
}

// NewTaskQueue returns a Redis-backed queue when enabled and reachable,
// otherwise an in-process queue.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if cfg == nil || !cfg.Enabled {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
		return NewSyncQueue()
	}

	queue, err := NewAsyncQueue(cfg)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		return NewSyncQueue()
	}
	logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
	return queue
}

// LearningApprovalHook enqueues a corpus refresh for every approved record.
func LearningApprovalHook(queue TaskQueue) store.ApprovalHook {
	return func(ctx context.Context, record *models.FeedbackRecord) error {
		return queue.Enqueue(&LearningTask{
			ClientID:   record.ClientID,
			AgentType:  record.AgentType,
			FeedbackID: record.ID,
		})
	}
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *LearningTask) error {
	payload, err := learningPayload(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeLearningRefresh, payload)
	info, err := q.client.Enqueue(t, learningTaskOptions()...)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Task enqueued: id=%s, queue=%s", info.ID, info.Queue)
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// learningTaskOptions carries no uniqueness or task id: every approval must
// trigger a rebuild that starts after it committed. The single-concurrency
// worker keeps those rebuilds ordered.
func learningTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.ProcessIn(learningTaskDelay),
	}
}

func learningPayload(task *LearningTask) ([]byte, error) {
	return json.Marshal(task)
}

// SyncQueue runs each task on its own goroutine in this process.
type SyncQueue struct {
	processor func(context.Context, *LearningTask) error
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor func(context.Context, *LearningTask) error) {
	q.mu.Lock()
	q.processor = processor
	q.mu.Unlock()
}

// Enqueue returns immediately; processing failures are only logged.
func (q *SyncQueue) Enqueue(task *LearningTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := processor(context.Background(), task); err != nil {
			logger.Warnf("[SyncQueue] Task processing failed: %v", err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
