package attendance

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/period"
	"github.com/hitoshi/qrattend/internal/repository"
)

// ist はタイムゾーンデータに依存しないインド標準時。
var ist = time.FixedZone("IST", 5*60*60+30*60)

func testTable() *period.Table {
	return period.MustDefault(ist)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryAttendanceRepo は (student_id, period_start) の一意制約を再現するインメモリ実装。
type memoryAttendanceRepo struct {
	mu       sync.Mutex
	records  []model.AttendanceRecord
	sessions map[string]*model.Session
	users    map[string]*model.User

	existsFn func(ctx context.Context, studentID string, start, end time.Time) (bool, error)
	createFn func(ctx context.Context, record *model.AttendanceRecord) error
}

func newMemoryAttendanceRepo() *memoryAttendanceRepo {
	return &memoryAttendanceRepo{
		sessions: map[string]*model.Session{},
		users:    map[string]*model.User{},
	}
}

func (m *memoryAttendanceRepo) ExistsInWindow(ctx context.Context, studentID string, start, end time.Time) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, studentID, start, end)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.StudentID == studentID && !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryAttendanceRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.StudentID == record.StudentID && r.PeriodStart.Equal(record.PeriodStart) {
			return repository.ErrDuplicate
		}
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryAttendanceRepo) ListByStudentSince(ctx context.Context, studentID string, since time.Time) ([]model.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CheckIn
	for _, r := range m.records {
		if r.StudentID != studentID || r.Timestamp.Before(since) {
			continue
		}
		c := model.CheckIn{SessionID: r.SessionID, Timestamp: r.Timestamp, PeriodLabel: r.PeriodLabel}
		if s, ok := m.sessions[r.SessionID]; ok {
			c.FacultyID = s.FacultyID
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *memoryAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]model.RosterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RosterEntry
	for _, r := range m.records {
		if r.SessionID != sessionID {
			continue
		}
		e := model.RosterEntry{StudentID: r.StudentID, Timestamp: r.Timestamp, PeriodLabel: r.PeriodLabel}
		if s, ok := m.sessions[r.SessionID]; ok {
			e.FacultyID = s.FacultyID
		}
		if u, ok := m.users[r.StudentID]; ok {
			e.StudentName = u.Username
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

var _ repository.AttendanceRepository = (*memoryAttendanceRepo)(nil)

// sessionFinder はmemoryAttendanceRepoのセッションを参照するSessionFinder。
type sessionFinder struct {
	repo  *memoryAttendanceRepo
	getFn func(ctx context.Context, id string) (*model.Session, error)
}

func (f *sessionFinder) Get(ctx context.Context, id string) (*model.Session, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	s, ok := f.repo.sessions[id]
	if !ok {
		return nil, model.NewSessionNotFoundError(id)
	}
	return s, nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return nil
}

type mockMetrics struct {
	mu       sync.Mutex
	marked   map[string]int
	rejected map[string]int
	observed int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{marked: map[string]int{}, rejected: map[string]int{}}
}

func (m *mockMetrics) RecordAttendanceMarked(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked[p]++
}
func (m *mockMetrics) RecordAttendanceRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}
func (m *mockMetrics) RecordMarkLatency(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed++
}
