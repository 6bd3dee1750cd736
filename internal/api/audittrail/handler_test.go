package audittrail

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/db/repositories"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var auditCols = []string{
	"log_id", "user_id", "user_email", "user_name", "user_position",
	"action_type", "entity_type", "entity_id", "description",
	"ip_address", "user_agent", "old_values", "new_values",
	"status", "error_message", "created_at",
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(repositories.NewAuditRepository(db), logger), mock
}

func testRouter(h *Handler) *gin.Engine {
	router := gin.New()
	api := router.Group("/api/audit-trail")
	{
		api.GET("/getAllAuditLogs", h.GetAllAuditLogs)
		api.GET("/getAuditLogById/:id", h.GetAuditLogByID)
		api.GET("/getAuditTrailSummary", h.GetAuditTrailSummary)
	}
	return router
}

func get(router *gin.Engine, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", target, nil))

	var parsed map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &parsed)
	return w, parsed
}

func sampleRow() *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).
		AddRow(int64(1), "7", "admin@example.com", "Ana Cruz", "Admin",
			"DELETE", "member", "42", "DELETE /api/church-records/members/deleteMember/42",
			"1.2.3.4", "curl/8.0", []byte(`{"firstname":"Ana"}`), nil,
			"success", nil, time.Now())
}

// ---------------------------------------------------------------------------
// GetAllAuditLogs
// ---------------------------------------------------------------------------

func TestGetAllAuditLogs(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM audit_logs`).
		WillReturnRows(sampleRow())

	w, body := get(testRouter(h), "/api/audit-trail/getAllAuditLogs?action_type=DELETE&entity_type=member")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["count"] != float64(1) || body["totalCount"] != float64(1) {
		t.Errorf("unexpected counts: count=%v totalCount=%v", body["count"], body["totalCount"])
	}
	data, ok := body["data"].([]interface{})
	if !ok || len(data) != 1 {
		t.Fatalf("unexpected data: %#v", body["data"])
	}
	entry := data[0].(map[string]interface{})
	if entry["action_type"] != "DELETE" || entry["entity_id"] != "42" {
		t.Errorf("unexpected entry: %#v", entry)
	}
}

func TestGetAllAuditLogs_InvalidDate(t *testing.T) {
	h, _ := newTestHandler(t)
	w, body := get(testRouter(h), "/api/audit-trail/getAllAuditLogs?date_to=lastweek")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

func TestGetAllAuditLogs_DBError(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs`).
		WillReturnError(errors.New("db error"))

	w, _ := get(testRouter(h), "/api/audit-trail/getAllAuditLogs")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GetAuditLogByID
// ---------------------------------------------------------------------------

func TestGetAuditLogByID(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT (.+) FROM audit_logs WHERE log_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sampleRow())

	w, body := get(testRouter(h), "/api/audit-trail/getAuditLogById/1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]interface{})
	if data["user_name"] != "Ana Cruz" {
		t.Errorf("unexpected user_name: %v", data["user_name"])
	}
	oldValues, ok := data["old_values"].(map[string]interface{})
	if !ok || oldValues["firstname"] != "Ana" {
		t.Errorf("old_values not serialized: %#v", data["old_values"])
	}
}

func TestGetAuditLogByID_NotFound(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT (.+) FROM audit_logs WHERE log_id = \$1`).
		WillReturnRows(sqlmock.NewRows(auditCols))

	w, _ := get(testRouter(h), "/api/audit-trail/getAuditLogById/99")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetAuditLogByID_BadID(t *testing.T) {
	h, _ := newTestHandler(t)
	w, _ := get(testRouter(h), "/api/audit-trail/getAuditLogById/abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GetAuditTrailSummary
// ---------------------------------------------------------------------------

func TestGetAuditTrailSummary(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`GROUP BY action_type`).
		WillReturnRows(sqlmock.NewRows([]string{"action_type", "count"}).AddRow("DELETE", 3))
	mock.ExpectQuery(`GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("success", 5))
	mock.ExpectQuery(`GROUP BY entity_type`).
		WillReturnRows(sqlmock.NewRows([]string{"entity_type", "count"}).AddRow("member", 5))

	w, body := get(testRouter(h), "/api/audit-trail/getAuditTrailSummary")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]interface{})
	if data["total"] != float64(5) {
		t.Errorf("unexpected total: %v", data["total"])
	}
	byAction := data["by_action_type"].(map[string]interface{})
	if byAction["DELETE"] != float64(3) {
		t.Errorf("unexpected action breakdown: %#v", byAction)
	}
}
