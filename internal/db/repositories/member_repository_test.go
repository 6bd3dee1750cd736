package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/church-registry/church-registry/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var memberCols = []string{
	"member_id", "firstname", "middle_name", "lastname", "email",
	"contact_no", "address", "status", "created_at", "updated_at",
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newMemberRepo(t *testing.T) (*MemberRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMemberRepository(db), mock
}

func sampleMemberRow() *sqlmock.Rows {
	return sqlmock.NewRows(memberCols).
		AddRow(int64(42), "Ana", nil, "Cruz", "ana@example.com",
			"09171234567", nil, "active", time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestMemberCreate(t *testing.T) {
	repo, mock := newMemberRepo(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO tbl_members`).
		WithArgs("Ana", nil, "Cruz", strPtr("ana@example.com"), nil, nil, "active").
		WillReturnRows(sqlmock.NewRows([]string{"member_id", "created_at", "updated_at"}).
			AddRow(int64(42), now, now))

	m, err := repo.Create(context.Background(), &models.Member{
		Firstname: "Ana",
		Lastname:  "Cruz",
		Email:     strPtr("ana@example.com"),
		Status:    "active",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MemberID != 42 {
		t.Errorf("expected member id 42, got %d", m.MemberID)
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected created_at to be populated")
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestMemberList_SearchAndStatus(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tbl_members`).
		WithArgs("%ana%", "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM tbl_members (.+) ORDER BY lastname ASC, firstname ASC`).
		WillReturnRows(sampleMemberRow())

	filters := MemberFilters{Search: strPtr("ana"), Status: strPtr("active")}
	members, total, err := repo.List(context.Background(), filters, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(members) != 1 {
		t.Fatalf("expected 1 member, got total=%d len=%d", total, len(members))
	}
	if members[0].Firstname != "Ana" || members[0].Lastname != "Cruz" {
		t.Errorf("unexpected member: %s %s", members[0].Firstname, members[0].Lastname)
	}
}

func TestMemberList_Empty(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tbl_members`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM tbl_members`).
		WillReturnRows(sqlmock.NewRows(memberCols))

	members, total, err := repo.List(context.Background(), MemberFilters{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(members) != 0 {
		t.Errorf("expected empty result, got total=%d len=%d", total, len(members))
	}
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestMemberGetByID_Found(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sampleMemberRow())

	m, err := repo.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.MemberID != 42 {
		t.Fatalf("expected member 42, got %#v", m)
	}
}

func TestMemberGetByID_NotFound(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WillReturnRows(sqlmock.NewRows(memberCols))

	m, err := repo.GetByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil member, got %#v", m)
	}
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestMemberUpdate_Found(t *testing.T) {
	repo, mock := newMemberRepo(t)
	now := time.Now()
	mock.ExpectQuery(`UPDATE tbl_members`).
		WillReturnRows(sqlmock.NewRows([]string{"member_id", "created_at", "updated_at"}).
			AddRow(int64(42), now.Add(-time.Hour), now))

	m, err := repo.Update(context.Background(), 42, &models.Member{
		Firstname: "Ana", Lastname: "Cruz-Santos", Status: "active",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.MemberID != 42 {
		t.Fatalf("expected member 42, got %#v", m)
	}
	if !m.UpdatedAt.After(m.CreatedAt) {
		t.Error("expected updated_at after created_at")
	}
}

func TestMemberUpdate_NotFound(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery(`UPDATE tbl_members`).
		WillReturnRows(sqlmock.NewRows([]string{"member_id", "created_at", "updated_at"}))

	m, err := repo.Update(context.Background(), 99, &models.Member{Firstname: "X", Lastname: "Y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil member, got %#v", m)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestMemberDelete_Found(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectExec(`DELETE FROM tbl_members WHERE member_id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected deleted=true")
	}
}

func TestMemberDelete_NotFound(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectExec(`DELETE FROM tbl_members WHERE member_id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Error("expected deleted=false")
	}
}
