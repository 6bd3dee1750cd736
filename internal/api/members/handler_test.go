package members

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/archive"
	"github.com/church-registry/church-registry/internal/db/repositories"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errDB = errors.New("db error")

var memberCols = []string{
	"member_id", "firstname", "middle_name", "lastname", "email",
	"contact_no", "address", "status", "created_at", "updated_at",
}

// newTestHandler backs both the member repository and the archiver with the same
// mock database, mirroring how they share a pool in production.
func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archiver := archive.NewArchiver(repositories.NewArchiveRepository(db), logger)
	return NewHandler(repositories.NewMemberRepository(db), archiver, logger), mock
}

func testRouter(h *Handler) *gin.Engine {
	router := gin.New()
	api := router.Group("/api/church-records/members")
	{
		api.POST("/createMember", h.CreateMember)
		api.GET("/getAllMembers", h.GetAllMembers)
		api.GET("/getMemberById/:id", h.GetMemberByID)
		api.PUT("/updateMember/:id", h.UpdateMember)
		api.DELETE("/deleteMember/:id", h.DeleteMember)
	}
	return router
}

func do(router *gin.Engine, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &parsed)
	return w, parsed
}

func sampleRow() *sqlmock.Rows {
	return sqlmock.NewRows(memberCols).
		AddRow(int64(42), "Ana", nil, "Cruz", "ana@example.com",
			nil, nil, "active", time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// CreateMember
// ---------------------------------------------------------------------------

func TestCreateMember(t *testing.T) {
	h, mock := newTestHandler(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO tbl_members`).
		WillReturnRows(sqlmock.NewRows([]string{"member_id", "created_at", "updated_at"}).
			AddRow(int64(42), now, now))

	w, body := do(testRouter(h), "POST", "/api/church-records/members/createMember",
		`{"firstname":"Ana","lastname":"Cruz","email":"ana@example.com"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]interface{})
	if data["member_id"] != float64(42) {
		t.Errorf("unexpected member id: %v", data["member_id"])
	}
	// Omitted status defaults to active.
	if data["status"] != "active" {
		t.Errorf("unexpected status: %v", data["status"])
	}
}

func TestCreateMember_MissingRequiredFields(t *testing.T) {
	h, _ := newTestHandler(t)
	w, body := do(testRouter(h), "POST", "/api/church-records/members/createMember",
		`{"firstname":"Ana"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

// ---------------------------------------------------------------------------
// GetAllMembers
// ---------------------------------------------------------------------------

func TestGetAllMembers(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tbl_members`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM tbl_members`).
		WillReturnRows(sampleRow())

	w, body := do(testRouter(h), "GET", "/api/church-records/members/getAllMembers?search=ana", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["count"] != float64(1) || body["totalCount"] != float64(1) {
		t.Errorf("unexpected counts: count=%v totalCount=%v", body["count"], body["totalCount"])
	}
	if _, ok := body["pagination"].(map[string]interface{}); !ok {
		t.Error("pagination block missing")
	}
}

// ---------------------------------------------------------------------------
// GetMemberByID
// ---------------------------------------------------------------------------

func TestGetMemberByID_NotFound(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WillReturnRows(sqlmock.NewRows(memberCols))

	w, _ := do(testRouter(h), "GET", "/api/church-records/members/getMemberById/99", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetMemberByID_BadID(t *testing.T) {
	h, _ := newTestHandler(t)
	w, _ := do(testRouter(h), "GET", "/api/church-records/members/getMemberById/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// UpdateMember
// ---------------------------------------------------------------------------

func TestUpdateMember(t *testing.T) {
	h, mock := newTestHandler(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WillReturnRows(sampleRow())
	mock.ExpectQuery(`UPDATE tbl_members`).
		WillReturnRows(sqlmock.NewRows([]string{"member_id", "created_at", "updated_at"}).
			AddRow(int64(42), now.Add(-time.Hour), now))

	w, body := do(testRouter(h), "PUT", "/api/church-records/members/updateMember/42",
		`{"firstname":"Ana","lastname":"Cruz-Santos","status":"inactive"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]interface{})
	if data["lastname"] != "Cruz-Santos" {
		t.Errorf("unexpected lastname: %v", data["lastname"])
	}
}

func TestUpdateMember_NotFound(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WillReturnRows(sqlmock.NewRows(memberCols))

	w, _ := do(testRouter(h), "PUT", "/api/church-records/members/updateMember/99",
		`{"firstname":"X","lastname":"Y"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// DeleteMember
// ---------------------------------------------------------------------------

func TestDeleteMember_ArchivesThenDeletes(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WillReturnRows(sampleRow())
	mock.ExpectQuery(`INSERT INTO archives`).
		WillReturnRows(sqlmock.NewRows([]string{"archive_id"}).AddRow(int64(3)))
	mock.ExpectExec(`DELETE FROM tbl_members WHERE member_id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w, body := do(testRouter(h), "DELETE", "/api/church-records/members/deleteMember/42", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["archived"] != true {
		t.Errorf("expected archived true, got %v", body["archived"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("archive must run before the delete: %v", err)
	}
}

func TestDeleteMember_ArchiveFailureStillDeletes(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WillReturnRows(sampleRow())
	mock.ExpectQuery(`INSERT INTO archives`).
		WillReturnError(errDB)
	mock.ExpectExec(`DELETE FROM tbl_members WHERE member_id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w, body := do(testRouter(h), "DELETE", "/api/church-records/members/deleteMember/42", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["archived"] != false {
		t.Errorf("expected archived false, got %v", body["archived"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "archiving failed") {
		t.Errorf("message should report the failed snapshot: %q", msg)
	}
}

func TestDeleteMember_NotFound(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT \* FROM tbl_members WHERE member_id = \$1`).
		WillReturnRows(sqlmock.NewRows(memberCols))

	w, _ := do(testRouter(h), "DELETE", "/api/church-records/members/deleteMember/99", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
