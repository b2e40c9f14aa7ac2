package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*cliContext, *store.MemoryStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Learning.CorpusDir = t.TempDir()
	mem := store.NewMemoryStore()
	return &cliContext{cfg: cfg, store: mem}, mem
}

func run(t *testing.T, ctx *cliContext, args ...string) (string, error) {
	t.Helper()
	cmd := RootCommand(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, mem *store.MemoryStore, status models.Status) uint {
	t.Helper()
	id, err := mem.Save(context.Background(), &models.FeedbackRecord{
		Rating:          2,
		Category:        models.CategoryTone,
		RawTextFeedback: "רשמי מדי",
		ClientID:        "dana",
		AgentType:       "facebook_copywriter",
		Status:          status,
		ConfidenceScore: 0.9,
	})
	require.NoError(t, err)
	return id
}

func TestQueueCommand(t *testing.T) {
	ctx, mem := newTestContext(t)

	out, err := run(t, ctx, "queue", "--client", "dana", "--agent", "facebook_copywriter")
	require.NoError(t, err)
	assert.Contains(t, out, "lab queue is empty")

	seed(t, mem, models.StatusPendingRefinement)
	seed(t, mem, models.StatusPendingRefinement)

	out, err = run(t, ctx, "queue", "--client", "dana", "--agent", "facebook_copywriter")
	require.NoError(t, err)
	assert.Contains(t, out, "current: #1 tone rating=2")
	assert.Contains(t, out, "backlog: 1")
}

func TestQueueCommand_RequiresFlags(t *testing.T) {
	ctx, _ := newTestContext(t)

	_, err := run(t, ctx, "queue", "--client", "dana")
	assert.Error(t, err)
}

func TestAgeCommand(t *testing.T) {
	ctx, _ := newTestContext(t)

	out, err := run(t, ctx, "age")
	require.NoError(t, err)
	assert.Contains(t, out, "aged 0 record(s)")
}

func TestStatsCommand(t *testing.T) {
	ctx, mem := newTestContext(t)
	seed(t, mem, models.StatusApproved)
	seed(t, mem, models.StatusPendingRefinement)

	out, err := run(t, ctx, "stats", "--client", "dana")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 2")
	assert.Contains(t, out, "approved")
	assert.Contains(t, out, "pending_refinement")
}

func TestAggregateCommand(t *testing.T) {
	ctx, mem := newTestContext(t)
	seed(t, mem, models.StatusApproved)

	out, err := run(t, ctx, "aggregate", "--client", "dana", "--agent", "facebook_copywriter")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 pattern(s)")
}

func TestMemoryFlag(t *testing.T) {
	ctx := &cliContext{cfg: config.DefaultConfig()}

	out, err := run(t, ctx, "--memory", "stats", "--client", "dana")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 0")
}
