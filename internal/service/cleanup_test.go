package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/store"
)

// TestCleanupWorkerRunOnce 测试单次清理
func TestCleanupWorkerRunOnce(t *testing.T) {
	current := time.Now()
	memStore := store.NewMemoryStore(testLogger(),
		store.WithClock(func() time.Time { return current }))
	ctx := context.Background()

	_, err := memStore.CreateTask(ctx, "task_old", model.FileInfo{Name: "a.jpg", Size: 1, Type: "image/jpeg"})
	require.NoError(t, err)

	current = current.Add(store.MemoryTTL + time.Minute)
	_, err = memStore.CreateTask(ctx, "task_new", model.FileInfo{Name: "b.jpg", Size: 1, Type: "image/jpeg"})
	require.NoError(t, err)

	worker := NewCleanupWorker(memStore, time.Minute, testLogger())
	assert.Equal(t, 1, worker.RunOnce(ctx))
	assert.Equal(t, 1, memStore.Len())
}

// TestCleanupWorkerStopsOnCancel 测试上下文取消后退出
func TestCleanupWorkerStopsOnCancel(t *testing.T) {
	memStore := store.NewMemoryStore(testLogger())
	worker := NewCleanupWorker(memStore, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop after context cancellation")
	}
}
