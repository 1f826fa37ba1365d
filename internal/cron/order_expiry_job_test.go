package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/learnhub/payrecon/pkg/logger"
)

type fakeExpirer struct {
	batches []int
	err     error
	calls   int
	limits  []int
}

func (f *fakeExpirer) ExpireOverdue(_ context.Context, limit int) (int, error) {
	f.limits = append(f.limits, limit)
	f.calls++
	if f.calls > len(f.batches) {
		return 0, f.err
	}
	return f.batches[f.calls-1], nil
}

func newExpiryJob(t *testing.T, expirer orderExpirer, batch int) Job {
	t.Helper()
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    logger.New(logger.Options{Output: io.Discard}),
		Expirer:   expirer,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func TestOrderExpiryJobDrainsUntilShortBatch(t *testing.T) {
	expirer := &fakeExpirer{batches: []int{2, 2, 1}}
	job := newExpiryJob(t, expirer, 2)

	if job.Name() != OrderExpiryJobName {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", expirer.calls)
	}
	for _, limit := range expirer.limits {
		if limit != 2 {
			t.Fatalf("expected batch size 2, got %d", limit)
		}
	}
}

func TestOrderExpiryJobStopsAtBatchCap(t *testing.T) {
	full := make([]int, maxExpiryBatches+5)
	for i := range full {
		full[i] = 1
	}
	expirer := &fakeExpirer{batches: full}
	job := newExpiryJob(t, expirer, 1)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != maxExpiryBatches {
		t.Fatalf("expected %d batches, got %d", maxExpiryBatches, expirer.calls)
	}
}

func TestOrderExpiryJobPropagatesErrors(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db unavailable")}
	job := newExpiryJob(t, expirer, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if expirer.limits[0] != defaultExpiryBatchSize {
		t.Fatalf("expected default batch size, got %d", expirer.limits[0])
	}
}

func TestNewOrderExpiryJobValidates(t *testing.T) {
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Expirer: &fakeExpirer{}}); err == nil {
		t.Fatal("expected missing logger to fail")
	}
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logger.New(logger.Options{Output: io.Discard})}); err == nil {
		t.Fatal("expected missing expirer to fail")
	}
}
