package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hszk-dev/footage/internal/config"
	"github.com/hszk-dev/footage/internal/domain/model"
)

// fakeConsumer delivers one job per consume loop, then blocks until ctx ends.
type fakeConsumer struct {
	loops   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeConsumer) ConsumeRemoteJobs(ctx context.Context, handler func(ctx context.Context, job model.RemoteJob) error) error {
	id := f.loops.Add(1)
	if f.err != nil {
		return f.err
	}
	_ = handler(ctx, model.RemoteJob{FootageID: int64(id)})
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConsumer) Close() error { return nil }

func (f *fakeConsumer) handle(ctx context.Context, job model.RemoteJob) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	<-f.release
	return nil
}

func TestConsumerCount(t *testing.T) {
	tests := []struct {
		name        string
		transport   string
		concurrency int
		want        int
	}{
		{"rabbitmq fans out", config.TransportRabbitMQ, 3, 3},
		{"rabbitmq at least one", config.TransportRabbitMQ, 0, 1},
		{"asynq pools internally", config.TransportAsynq, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Remote.Transport = tt.transport
			cfg.Remote.Concurrency = tt.concurrency

			if got := consumerCount(cfg); got != tt.want {
				t.Errorf("consumerCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStartConsumers_RunsJobsConcurrently(t *testing.T) {
	c := &fakeConsumer{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	errCh := startConsumers(ctx, c, 3, c.handle, &wg)

	deadline := time.Now().Add(2 * time.Second)
	for c.active.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("active jobs = %d, want 3", c.active.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Cancelling must not release wg while jobs are still running.
	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait returned with jobs in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(c.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after jobs finished")
	}

	if got := c.peak.Load(); got != 3 {
		t.Errorf("peak concurrency = %d, want 3", got)
	}
	select {
	case err := <-errCh:
		t.Errorf("unexpected consumer error after cancel: %v", err)
	default:
	}
}

func TestStartConsumers_ReportsFailure(t *testing.T) {
	c := &fakeConsumer{err: errors.New("channel closed"), release: make(chan struct{})}

	var wg sync.WaitGroup
	errCh := startConsumers(context.Background(), c, 2, c.handle, &wg)
	wg.Wait()

	select {
	case err := <-errCh:
		if !errors.Is(err, c.err) {
			t.Errorf("error = %v, want wrapping %v", err, c.err)
		}
	default:
		t.Fatal("expected a consumer error")
	}
}
