package authapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/auth"
	"github.com/church-registry/church-registry/internal/config"
	"github.com/church-registry/church-registry/internal/db/repositories"
	"github.com/church-registry/church-registry/internal/middleware"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("CHR_JWT_SECRET", "test-secret-0123456789abcdef0123456789abcdef")
	os.Exit(m.Run())
}

var accountCols = []string{"acc_id", "email", "password", "position", "created_at"}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Auth.SessionTTL = time.Hour
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(repositories.NewAccountRepository(db), cfg, logger), mock
}

func do(h *Handler, method, target, body string, setup gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	router := gin.New()
	if setup != nil {
		router.Use(setup)
	}
	router.POST("/api/auth/login", h.Login)
	router.POST("/api/auth/logout", h.Logout)
	router.GET("/api/auth/me", h.Me)

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

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	h, mock := newTestHandler(t)

	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	mock.ExpectQuery(`SELECT (.+) FROM tbl_accounts`).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow(int64(7), "admin@example.com", hash, "Admin", time.Now()))

	w, body := do(h, "POST", "/api/auth/login",
		`{"email":"admin@example.com","password":"hunter2"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("expected a session token")
	}

	claims, err := auth.ValidateJWT(token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.UserID != "7" || claims.Email != "admin@example.com" || claims.Position != "Admin" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, mock := newTestHandler(t)

	hash, _ := auth.HashPassword("hunter2")
	mock.ExpectQuery(`SELECT (.+) FROM tbl_accounts`).
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow(int64(7), "admin@example.com", hash, nil, time.Now()))

	w, body := do(h, "POST", "/api/auth/login",
		`{"email":"admin@example.com","password":"wrong"}`, nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

func TestLogin_UnknownAccount(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT (.+) FROM tbl_accounts`).
		WillReturnRows(sqlmock.NewRows(accountCols))

	w, _ := do(h, "POST", "/api/auth/login",
		`{"email":"nobody@example.com","password":"whatever"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h, _ := newTestHandler(t)
	w, _ := do(h, "POST", "/api/auth/login", `{"email":"admin@example.com"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Logout / Me
// ---------------------------------------------------------------------------

func TestLogout(t *testing.T) {
	h, _ := newTestHandler(t)
	w, body := do(h, "POST", "/api/auth/logout", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
}

func TestMe(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`LEFT JOIN tbl_members`).
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows([]string{"email", "position", "firstname", "middle_name", "lastname"}).
			AddRow("admin@example.com", "Admin", "Ana", nil, "Cruz"))

	asUser := func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "7")
		c.Next()
	}
	w, body := do(h, "GET", "/api/auth/me", "", asUser)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]interface{})
	if data["fullname"] != "Ana Cruz" || data["email"] != "admin@example.com" {
		t.Errorf("unexpected account payload: %#v", data)
	}
}

func TestMe_UnknownAccount(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`LEFT JOIN tbl_members`).
		WillReturnRows(sqlmock.NewRows([]string{"email", "position", "firstname", "middle_name", "lastname"}))

	w, _ := do(h, "GET", "/api/auth/me", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
