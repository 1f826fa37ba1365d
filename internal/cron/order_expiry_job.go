package cron

import (
	"context"
	"fmt"

	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/metrics"
)

const (
	OrderExpiryJobName     = "order-expiry"
	defaultExpiryBatchSize = 200
	maxExpiryBatches       = 10
)

type orderExpirer interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Expirer   orderExpirer
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

type orderExpiryJob struct {
	logg      *logger.Logger
	expirer   orderExpirer
	metrics   *metrics.CronJobMetrics
	batchSize int
}

// NewOrderExpiryJob builds the sweep that moves overdue pending orders to
// expired through the same compare-and-swap as the request paths.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &orderExpiryJob{
		logg:      params.Logger,
		expirer:   params.Expirer,
		metrics:   params.Metrics,
		batchSize: batch,
	}, nil
}

func (j *orderExpiryJob) Name() string { return OrderExpiryJobName }

// Run drains overdue orders batch by batch. A short batch means the backlog
// is empty.
func (j *orderExpiryJob) Run(ctx context.Context) error {
	total := 0
	defer func() { j.metrics.AddExpiredOrders(total) }()
	for i := 0; i < maxExpiryBatches; i++ {
		n, err := j.expirer.ExpireOverdue(ctx, j.batchSize)
		total += n
		if err != nil {
			return fmt.Errorf("expire overdue orders: %w", err)
		}
		if n < j.batchSize {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "cron.orders_expired")
	return nil
}
