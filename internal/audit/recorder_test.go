package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/church-registry/church-registry/internal/db/models"
	"github.com/church-registry/church-registry/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var errTest = errors.New("test error")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRecorderMock(t *testing.T) (*repositories.AuditRepository, *repositories.AccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewAuditRepository(db), repositories.NewAccountRepository(db), mock
}

// captureShipper records shipped entries for assertions.
type captureShipper struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (cs *captureShipper) Ship(_ context.Context, entry *models.AuditLog) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.entries = append(cs.entries, entry)
	return nil
}

func (cs *captureShipper) Close() error { return nil }

func (cs *captureShipper) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.entries)
}

// ---------------------------------------------------------------------------
// Enqueue / Stop
// ---------------------------------------------------------------------------

func TestRecorderWritesEntry(t *testing.T) {
	repo, _, mock := newRecorderMock(t)
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"log_id"}).AddRow(int64(11)))

	rec := NewRecorder(repo, nil, nil, 16, discardLogger())

	entry := &models.AuditLog{
		UserID:     "7",
		ActionType: models.ActionCreate,
		EntityType: "member",
		EntityID:   "42",
		Status:     models.StatusSuccess,
	}
	if !rec.Enqueue(entry) {
		t.Fatal("expected Enqueue to accept the entry")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if entry.LogID != 11 {
		t.Errorf("expected log id 11 after write, got %d", entry.LogID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	repo, _, mock := newRecorderMock(t)

	// The first write is held long enough for the queue to fill up behind it.
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillDelayFor(300 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"log_id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"log_id"}).AddRow(int64(2)))

	rec := NewRecorder(repo, nil, nil, 1, discardLogger())

	if !rec.Enqueue(&models.AuditLog{EntityID: "a"}) {
		t.Fatal("first entry should be accepted")
	}
	// Give the worker time to pick up the first entry and block in the insert.
	time.Sleep(50 * time.Millisecond)
	if !rec.Enqueue(&models.AuditLog{EntityID: "b"}) {
		t.Fatal("second entry should fit in the queue")
	}
	if rec.Enqueue(&models.AuditLog{EntityID: "c"}) {
		t.Error("third entry should be dropped while the queue is full")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRecorderStopTimeout(t *testing.T) {
	repo, _, mock := newRecorderMock(t)
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillDelayFor(2 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"log_id"}).AddRow(int64(1)))

	rec := NewRecorder(repo, nil, nil, 4, discardLogger())
	rec.Enqueue(&models.AuditLog{EntityID: "slow"})
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := rec.Stop(ctx); err == nil {
		t.Error("expected Stop to report the drain deadline")
	}
}

// ---------------------------------------------------------------------------
// Actor enrichment
// ---------------------------------------------------------------------------

func TestRecorderEnrichesActor(t *testing.T) {
	repo, accounts, mock := newRecorderMock(t)

	mock.ExpectQuery(`LEFT JOIN tbl_members`).
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows([]string{"email", "position", "firstname", "middle_name", "lastname"}).
			AddRow("admin@example.com", "Admin", "Ana", nil, "Cruz"))
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"log_id"}).AddRow(int64(1)))

	rec := NewRecorder(repo, accounts, nil, 16, discardLogger())

	entry := &models.AuditLog{UserID: "7", ActionType: models.ActionView, Status: models.StatusSuccess}
	rec.Enqueue(entry)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if entry.UserName == nil || *entry.UserName != "Ana Cruz" {
		t.Errorf("expected enriched user name, got %v", entry.UserName)
	}
	if entry.UserEmail == nil || *entry.UserEmail != "admin@example.com" {
		t.Errorf("expected enriched email, got %v", entry.UserEmail)
	}
}

func TestRecorderSkipsEnrichmentForAnonymous(t *testing.T) {
	repo, accounts, mock := newRecorderMock(t)

	// Only the insert: no actor lookup for anonymous entries.
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"log_id"}).AddRow(int64(1)))

	rec := NewRecorder(repo, accounts, nil, 16, discardLogger())
	rec.Enqueue(&models.AuditLog{UserID: "anonymous", ActionType: models.ActionLogin, Status: models.StatusFailed})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Shipping
// ---------------------------------------------------------------------------

func TestRecorderShipsAfterWriteFailure(t *testing.T) {
	repo, _, mock := newRecorderMock(t)
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnError(errTest)

	cs := &captureShipper{}
	rec := NewRecorder(repo, nil, cs, 16, discardLogger())
	rec.Enqueue(&models.AuditLog{EntityID: "42", ActionType: models.ActionDelete, Status: models.StatusSuccess})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The database write failed but the entry is still forwarded.
	if cs.count() != 1 {
		t.Errorf("expected 1 shipped entry, got %d", cs.count())
	}
}
