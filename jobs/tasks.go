package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/emprecords/emprecords/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit event.
	TaskAuditRecord = "audit:record"
	// TaskAuditPrune removes audit events older than the retention window.
	TaskAuditPrune = "audit:prune"
)

// NewAuditRecordTask constructs an Asynq task carrying e.
func NewAuditRecordTask(e audit.Event) (*asynq.Task, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.MaxRetry(5)), nil
}

// HandleAuditRecord returns a handler that writes TaskAuditRecord payloads to sink.
func HandleAuditRecord(sink audit.Recorder) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var e audit.Event
		if err := json.Unmarshal(t.Payload(), &e); err != nil {
			return fmt.Errorf("decode audit event: %v: %w", err, asynq.SkipRetry)
		}
		return sink.Record(ctx, e)
	}
}

// AuditPrunePayload carries the retention window for TaskAuditPrune.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditPruneTask constructs the periodic audit retention task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// AuditPruner deletes audit events recorded before a cutoff.
type AuditPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// HandleAuditPrune returns a handler that applies TaskAuditPrune payloads.
func HandleAuditPrune(pruner AuditPruner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Retention <= 0 {
			return fmt.Errorf("invalid audit prune payload: %w", asynq.SkipRetry)
		}
		cutoff := time.Now().UTC().Add(-payload.Retention)
		n, err := pruner.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("audit pruned", slog.Int64("rows", n), slog.Time("before", cutoff))
		return nil
	}
}
