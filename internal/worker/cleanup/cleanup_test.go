package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

// mockExecutor はExecutorのモック実装。
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []interface{}
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestJob(exec Executor, buf *bytes.Buffer) *CleanupJob {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	job := NewCleanupJob(exec, logger, 180)
	job.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
	return job
}

func TestCleanupJob_Run_DeletesExpiredEvents(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 42}}
	job := newTestJob(mock, &buf)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !strings.Contains(mock.query, "DELETE FROM auth_events") {
		t.Errorf("query = %s, want DELETE FROM auth_events", mock.query)
	}
	if !strings.Contains(mock.query, "created_at") {
		t.Errorf("query = %s, want created_at condition", mock.query)
	}

	if len(mock.args) != 1 {
		t.Fatalf("args = %v, want 1 cutoff argument", mock.args)
	}
	cutoff, ok := mock.args[0].(time.Time)
	if !ok {
		t.Fatalf("cutoff type = %T, want time.Time", mock.args[0])
	}
	want := time.Date(2026, 4, 4, 12, 0, 0, 0, time.UTC)
	if !cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", cutoff, want)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid log output: %v\n%s", err, buf.String())
	}
	if entry["deleted_count"] != float64(42) {
		t.Errorf("deleted_count = %v, want 42", entry["deleted_count"])
	}
	if entry["retention_days"] != float64(180) {
		t.Errorf("retention_days = %v, want 180", entry["retention_days"])
	}
}

func TestCleanupJob_Run_ZeroRowsIsSuccess(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := newTestJob(mock, &buf)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if mock.callCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.callCount())
	}
}

func TestCleanupJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: sql.ErrConnDone}
	job := newTestJob(mock, &buf)

	err := job.Run(context.Background())
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("err = %v, want wrapped sql.ErrConnDone", err)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected ERROR log, got: %s", buf.String())
	}
}

func TestCleanupJob_Run_RowsAffectedFailure(t *testing.T) {
	var buf bytes.Buffer
	errRows := errors.New("rows affected unsupported")
	mock := &mockExecutor{result: &fakeResult{err: errRows}}
	job := newTestJob(mock, &buf)

	if err := job.Run(context.Background()); !errors.Is(err, errRows) {
		t.Errorf("err = %v, want wrapped %v", err, errRows)
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := newTestJob(mock, &buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for mock.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Start did not run the job immediately")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if mock.callCount() != 1 {
		t.Errorf("calls = %d, want 1", mock.callCount())
	}
}
