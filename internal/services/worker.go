package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/pkg/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes learning refresh tasks from Redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *LearningTask) error
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			// corpus rewrites for one client must not interleave
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warnf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (w *Worker) SetProcessor(processor func(context.Context, *LearningTask) error) {
	w.mu.Lock()
	w.processor = processor
	w.mu.Unlock()
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeLearningRefresh, w.handleLearningTask)

	logger.Infof("[Worker] Starting async worker...")
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.running = true
	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handleLearningTask(ctx context.Context, t *asynq.Task) error {
	var task LearningTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		logger.Warnf("[Worker] Failed to unmarshal task: %v", err)
		return err
	}

	logger.Infof("[Worker] Processing learning refresh: client_id=%s, agent_type=%s", task.ClientID, task.AgentType)

	w.mu.Lock()
	processor := w.processor
	w.mu.Unlock()
	if processor == nil {
		logger.Warnf("[Worker] no processor set")
		return nil
	}

	return processor(ctx, &task)
}
