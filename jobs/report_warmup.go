package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/hibiken/asynq"

	"github.com/factorykpi/factorykpi/internal/inventory"
	jobmetrics "github.com/factorykpi/factorykpi/internal/jobs"
	"github.com/factorykpi/factorykpi/internal/production"
	"github.com/factorykpi/factorykpi/internal/reporting"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CacheBumper invalidates every cached payload. *cache.Cache satisfies it.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// OverviewBuilder builds the dashboard payload. *production.Service satisfies it.
type OverviewBuilder interface {
	Overview(ctx context.Context, f reporting.Filters) (production.Overview, error)
}

// InventoryBuilder builds the inventory payload. *inventory.Service satisfies it.
type InventoryBuilder interface {
	Payload(ctx context.Context, f reporting.Filters) (inventory.Payload, error)
}

// ReportWarmupJob drops stale cached payloads and prebuilds the unfiltered
// dashboard and inventory payload of every period.
type ReportWarmupJob struct {
	Cache      CacheBumper
	Production OverviewBuilder
	Inventory  InventoryBuilder
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(c CacheBumper, prod OverviewBuilder, inv InventoryBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Cache:      c,
		Production: prod,
		Inventory:  inv,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	return j.Run(ctx, payload)
}

// Run bumps the cache version and rebuilds the payloads.
func (j *ReportWarmupJob) Run(ctx context.Context, payload WarmupPayload) (resultErr error) {
	tracker := j.metrics().Track(TaskReportWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	if j.Cache != nil {
		version, err := j.Cache.Bump(ctx)
		if err != nil {
			logger.Error("bump cache version", slog.Any("error", err))
			return err
		}
		logger.Info("cache version bumped", slog.Int64("version", version))
	}

	dashboards, stock := 0, 0
	for _, period := range payload.periods() {
		if err := j.warmPeriod(ctx, period); err != nil {
			logger.Error("warm period", slog.String("period", string(period)), slog.Any("error", err))
			return err
		}
		if j.Production != nil {
			dashboards++
		}
		if j.Inventory != nil {
			stock++
		}
	}
	j.metrics().AddWarmed("dashboard", dashboards)
	j.metrics().AddWarmed("inventory", stock)

	logger.Info("completed report warmup", slog.Int("dashboards", dashboards), slog.Int("inventory", stock), slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *ReportWarmupJob) warmPeriod(ctx context.Context, period reporting.Period) error {
	periodCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	f := reporting.ParseFilters(url.Values{"period": {string(period)}})
	if j.Production != nil {
		if _, err := j.Production.Overview(periodCtx, f); err != nil {
			return err
		}
	}
	if j.Inventory != nil {
		if _, err := j.Inventory.Payload(periodCtx, f); err != nil {
			return err
		}
	}
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
