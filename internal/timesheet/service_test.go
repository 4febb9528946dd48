package timesheet

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emprecords/emprecords/internal/employees"
	"github.com/emprecords/emprecords/internal/rbac"
)

type memRepo struct {
	mu      sync.Mutex
	entries []TimeEntry
	depts   map[int64]string
}

func (m *memRepo) filter(keep func(TimeEntry) bool) []TimeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TimeEntry
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m *memRepo) List(context.Context) ([]TimeEntry, error) {
	return m.filter(func(TimeEntry) bool { return true }), nil
}

func (m *memRepo) ListByEmployee(_ context.Context, id int64) ([]TimeEntry, error) {
	return m.filter(func(e TimeEntry) bool { return e.EmployeeID == id }), nil
}

func (m *memRepo) ListByDepartment(_ context.Context, department string) ([]TimeEntry, error) {
	return m.filter(func(e TimeEntry) bool { return m.depts[e.EmployeeID] == department }), nil
}

func (m *memRepo) Get(_ context.Context, id int64) (TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return TimeEntry{}, ErrEntryNotFound
}

func (m *memRepo) Create(_ context.Context, e TimeEntry) (TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e, nil
}

type staticEmployees map[int64]employees.Employee

func (s staticEmployees) Get(_ context.Context, id int64) (employees.Employee, error) {
	e, ok := s[id]
	if !ok {
		return employees.Employee{}, employees.ErrEmployeeNotFound
	}
	return e, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() (*Service, *memRepo) {
	repo := &memRepo{depts: map[int64]string{1: "IT", 2: "Sales"}}
	staff := staticEmployees{
		1: {ID: 1, FirstName: "Jane", LastName: "Doe", Department: "IT"},
		2: {ID: 2, FirstName: "Ann", LastName: "Smith", Department: "Sales"},
	}
	svc := NewService(repo, staff)
	svc.now = func() time.Time { return time.Date(2024, 4, 2, 8, 45, 10, 0, time.UTC) }
	return svc, repo
}

func TestClockInDefaultsToNow(t *testing.T) {
	svc, _ := newTestService()

	e, err := svc.ClockIn(context.Background(), 1, ClockRequest{})
	require.NoError(t, err)
	assert.Equal(t, TimeEntry{ID: 1, EmployeeID: 1, Date: "2024-04-02", Time: "08:45:10", EntryType: EntryLogin}, e)

	e, err = svc.ClockOut(context.Background(), 1, ClockRequest{Date: "2024-04-02", Time: "17:00:00"})
	require.NoError(t, err)
	assert.Equal(t, EntryLogout, e.EntryType)
	assert.Equal(t, "17:00:00", e.Time)
}

func TestClockRequiresExistingEmployee(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.ClockIn(context.Background(), 9, ClockRequest{})
	assert.ErrorIs(t, err, employees.ErrEmployeeNotFound)
	assert.Empty(t, repo.entries)

	_, err = svc.ListByEmployee(context.Background(), 9)
	assert.ErrorIs(t, err, employees.ErrEmployeeNotFound)
}

func TestListingsAndOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.ClockIn(ctx, 1, ClockRequest{})
	require.NoError(t, err)
	_, err = svc.ClockIn(ctx, 2, ClockRequest{})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sales, err := svc.ListByDepartment(ctx, " Sales ")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, int64(2), sales[0].EmployeeID)

	owner, err := svc.OwnerOf(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), owner)

	_, err = svc.OwnerOf(ctx, 99)
	assert.ErrorIs(t, err, rbac.ErrRecordNotFound)
}
