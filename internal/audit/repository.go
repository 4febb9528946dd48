package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository stores audit events in the audit_logs table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert writes one event.
func (r *PGRepository) Insert(ctx context.Context, e Event) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO audit_logs (actor, action, target, outcome, remote_addr, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Actor, e.Action, e.Target, e.Outcome, e.RemoteAddr, e.At)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Window returns events matching filters, newest first.
func (r *PGRepository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
SELECT actor, action, target, outcome, remote_addr, occurred_at
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor = $3)
  AND ($4::text IS NULL OR action = $4)
ORDER BY occurred_at DESC, id DESC
OFFSET $5 LIMIT $6`,
		toPgTime(f.From), toPgTime(f.To), optionalText(f.Actor), optionalText(f.Action), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query timeline: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		err := row.Scan(&e.Actor, &e.Action, &e.Target, &e.Outcome, &e.RemoteAddr, &e.At)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("audit: scan timeline: %w", err)
	}
	return events, nil
}

// Prune deletes events recorded before the cutoff and reports how many were removed.
func (r *PGRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

var _ Repository = (*PGRepository)(nil)
