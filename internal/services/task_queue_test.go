package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/hibiken/asynq"
)

func TestTaskTypeLearningRefresh_Constant(t *testing.T) {
	if TaskTypeLearningRefresh != "learning:refresh" {
		t.Errorf("TaskTypeLearningRefresh = %q, expected %q", TaskTypeLearningRefresh, "learning:refresh")
	}
}

func TestLearningPayload_RoundTrip(t *testing.T) {
	data, err := learningPayload(&LearningTask{ClientID: "dana", AgentType: "copywriter", FeedbackID: 7})
	if err != nil {
		t.Fatalf("learningPayload() error = %v", err)
	}

	var decoded LearningTask
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded.ClientID != "dana" || decoded.AgentType != "copywriter" || decoded.FeedbackID != 7 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestLearningTaskOptions_NeverDeduplicate(t *testing.T) {
	var delayed bool
	for _, opt := range learningTaskOptions() {
		switch opt.Type() {
		case asynq.UniqueOpt, asynq.TaskIDOpt:
			t.Errorf("option %s would drop a refresh requested while another is pending", opt)
		case asynq.ProcessInOpt:
			delayed = true
		}
	}
	if !delayed {
		t.Error("expected refreshes to be delayed briefly")
	}
}

func TestNewTaskQueue_DisabledRedisIsSync(t *testing.T) {
	queue := NewTaskQueue(&config.RedisConfig{Enabled: false})
	defer queue.Close()

	if queue.IsAsync() {
		t.Error("IsAsync() should be false when Redis is disabled")
	}
	if _, ok := queue.(*SyncQueue); !ok {
		t.Errorf("queue type = %T, expected *SyncQueue", queue)
	}
	if NewTaskQueue(nil).IsAsync() {
		t.Error("nil config should fall back to sync mode")
	}
}

func TestSyncQueue_ProcessesAndCloseWaits(t *testing.T) {
	q := NewSyncQueue()

	var mu sync.Mutex
	var seen []string
	q.SetProcessor(func(ctx context.Context, task *LearningTask) error {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		seen = append(seen, task.ClientID)
		mu.Unlock()
		return nil
	})

	for _, client := range []string{"a", "b", "c"} {
		if err := q.Enqueue(&LearningTask{ClientID: client, AgentType: "copywriter"}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("processed %d tasks before Close returned, expected 3", len(seen))
	}
}

func TestSyncQueue_ProcessorErrorIsNotReturned(t *testing.T) {
	q := NewSyncQueue()
	q.SetProcessor(func(context.Context, *LearningTask) error { return errors.New("disk full") })

	if err := q.Enqueue(&LearningTask{ClientID: "dana"}); err != nil {
		t.Errorf("Enqueue() error = %v, expected nil", err)
	}
	q.Close()
}

func TestSyncQueue_NoProcessorDropsTask(t *testing.T) {
	q := NewSyncQueue()
	if err := q.Enqueue(&LearningTask{ClientID: "dana"}); err != nil {
		t.Errorf("Enqueue() error = %v", err)
	}
	q.Close()
}

func TestLearningApprovalHook_EnqueuesOnApproval(t *testing.T) {
	q := NewSyncQueue()
	tasks := make(chan *LearningTask, 4)
	q.SetProcessor(func(ctx context.Context, task *LearningTask) error {
		tasks <- task
		return nil
	})

	mem := store.NewMemoryStore(store.WithApprovalHook(LearningApprovalHook(q)))
	ctx := context.Background()

	id, err := mem.Save(ctx, &models.FeedbackRecord{
		Rating:    2,
		Category:  models.CategoryTone,
		ClientID:  "dana",
		AgentType: "facebook_copywriter",
		Status:    models.StatusPendingRefinement,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mem.UpdateStatus(ctx, id, store.StatusUpdate{Status: "approved", Expect: models.StatusPendingRefinement}); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	q.Close()

	select {
	case task := <-tasks:
		if task.ClientID != "dana" || task.AgentType != "facebook_copywriter" || task.FeedbackID != id {
			t.Errorf("task = %+v", task)
		}
	default:
		t.Fatal("approval did not enqueue a learning refresh")
	}
	if len(tasks) != 0 {
		t.Errorf("unexpected extra tasks: %d", len(tasks))
	}
}

func TestNewWorker_DisabledRedis(t *testing.T) {
	if w := NewWorker(&config.RedisConfig{}); w != nil {
		t.Error("NewWorker() should return nil when Redis is disabled")
	}
	if w := NewWorker(nil); w != nil {
		t.Error("NewWorker(nil) should return nil")
	}
}
