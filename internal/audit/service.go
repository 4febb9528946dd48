package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Recorder accepts audit events. Implementations may deliver asynchronously.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// NopRecorder discards events.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Event) error { return nil }

// Repository persists and queries audit events.
type Repository interface {
	Insert(ctx context.Context, e Event) error
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error)
}

// Service records events synchronously and serves the timeline.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs an audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record stores e, stamping it when At is zero.
func (s *Service) Record(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	e.Actor = strings.TrimSpace(e.Actor)
	if e.Action == "" {
		return errors.New("audit: event action required")
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	return s.repo.Insert(ctx, e)
}

// Timeline returns the newest events first, one page at a time.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	filters.Actor = strings.TrimSpace(filters.Actor)
	filters.Action = strings.TrimSpace(filters.Action)
	rows, err := s.repo.Window(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []Event{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

var _ Recorder = (*Service)(nil)

type remoteAddrKey struct{}

// WithRemoteAddr attaches the caller's address for events recorded under ctx.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

// RemoteAddrFrom returns the address stored by WithRemoteAddr.
func RemoteAddrFrom(ctx context.Context) string {
	v, _ := ctx.Value(remoteAddrKey{}).(string)
	return v
}
