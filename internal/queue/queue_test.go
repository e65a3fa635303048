package queue_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leginote/fiscalnote/internal/config"
	"github.com/leginote/fiscalnote/internal/models"
	"github.com/leginote/fiscalnote/internal/queue"
)

func TestJobError_UnwrapsAndFormats(t *testing.T) {
	inner := errors.New("navigation stalled")
	jerr := &queue.JobError{Kind: queue.KindNavigationTimeout, Err: inner}

	assert.ErrorIs(t, jerr, inner)
	assert.Equal(t, "NavigationTimeout: navigation stalled", jerr.Error())
}

// TestEnqueue_Integration exercises the full admission gate against a
// running Redis instance.
//
// Run with: KV_ADDRESS=localhost:6379 go test -v ./internal/queue/...
func TestEnqueue_Integration(t *testing.T) {
	addr := os.Getenv("KV_ADDRESS")
	if addr == "" {
		t.Skip("KV_ADDRESS not set, skipping integration test")
	}

	cfg := config.Load()
	cfg.KVAddress = addr
	cfg.MaxConcurrentJobs = 1

	o := queue.New(cfg, nil)
	id := models.BillID{Chamber: "H", Number: 1, Year: 2026}

	first := o.Enqueue(id)
	second := o.Enqueue(id)
	require.NotNil(t, first)
	assert.Same(t, first, second, "expected Enqueue to be idempotent for an already-queued bill")
}
