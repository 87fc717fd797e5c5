package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/factorykpi/factorykpi/internal/reporting"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup invalidates and rebuilds the cached dashboard payloads.
	TaskReportWarmup = "report:warmup"
	// WarmupUniqueWindow suppresses duplicate warmups enqueued close together.
	WarmupUniqueWindow = 5 * time.Minute
)

// RedisConnOpt turns REDIS_ADDR into asynq connection options. redis://
// URLs carry password and database index; anything else is host:port.
func RedisConnOpt(addr string) (asynq.RedisConnOpt, error) {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		opt, err := asynq.ParseRedisURI(addr)
		if err != nil {
			return nil, fmt.Errorf("jobs: redis uri: %w", err)
		}
		return opt, nil
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}

// WarmupPayload selects the periods to prebuild. Empty means every period.
type WarmupPayload struct {
	Periods []string `json:"periods,omitempty"`
}

// NewWarmupTask constructs an Asynq task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func (p WarmupPayload) periods() []reporting.Period {
	if len(p.Periods) == 0 {
		return reporting.Periods()
	}
	seen := make(map[reporting.Period]struct{}, len(p.Periods))
	out := make([]reporting.Period, 0, len(p.Periods))
	for _, raw := range p.Periods {
		period := reporting.ParsePeriod(raw)
		if _, ok := seen[period]; ok {
			continue
		}
		seen[period] = struct{}{}
		out = append(out, period)
	}
	return out
}
