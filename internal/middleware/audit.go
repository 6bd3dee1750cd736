// audit.go provides Gin middleware that records every API action to the audit trail.
// The entry is assembled after the handler has written its response, so it carries
// the real outcome, then handed to the asynchronous recorder; capture never blocks
// or fails the request it describes.
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/audit"
	"github.com/church-registry/church-registry/internal/db/models"
)

// maxCapturedBody caps how much of the request and response bodies the middleware
// retains for an entry. Larger bodies are recorded without values rather than
// truncated into invalid JSON.
const maxCapturedBody = 64 * 1024

// bodyFieldIDKeys are request body fields checked, in order, when the path carries
// no entity id. The list covers the primary key names used across the schema.
var bodyFieldIDKeys = []string{
	"id",
	"member_id",
	"acc_id",
	"transaction_id",
	"event_id",
	"ministry_id",
	"department_id",
	"approval_id",
	"baptism_id",
	"marriage_id",
	"burial_id",
	"child_dedication_id",
	"child_id",
	"tithe_id",
	"church_leader_id",
	"department_officer_id",
}

// sensitiveBodyKeys are stripped from captured request bodies before they are stored
// as new_values. Login bodies in particular must never land in the audit trail
// verbatim.
var sensitiveBodyKeys = []string{"password", "new_password", "confirm_password", "current_password"}

// auditBodyWriter tees the response body into a buffer so the middleware can inspect
// the conventional success/message envelope after the handler runs.
type auditBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *auditBodyWriter) Write(b []byte) (int, error) {
	if w.body.Len() < maxCapturedBody {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *auditBodyWriter) WriteString(s string) (int, error) {
	if w.body.Len() < maxCapturedBody {
		w.body.WriteString(s)
	}
	return w.ResponseWriter.WriteString(s)
}

// AuditMiddleware captures one audit entry per completed request.
//
// Skipped entirely: requests to the audit trail API itself (reading the trail must
// not append to it), CORS preflights, and unauthenticated requests that are not
// login attempts. When logReads is false, GET requests are skipped as well and
// only write operations are recorded. Everything else is classified, attributed,
// and enqueued on the recorder after the response is written.
func AuditMiddleware(recorder *audit.Recorder, logReads bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/audit-trail") {
			c.Next()
			return
		}
		if !logReads && c.Request.Method == "GET" {
			c.Next()
			return
		}

		requestBody := captureRequestBody(c)

		writer := &auditBodyWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		overrides := audit.OverridesFrom(c)
		if overrides.Skip {
			return
		}

		userID := c.GetString(UserIDKey)
		isLogin := strings.Contains(strings.ToLower(c.Request.URL.Path), "/login")
		if userID == "" && !isLogin {
			return
		}
		if userID == "" {
			userID = "anonymous"
		}

		entry := buildEntry(c, overrides, userID, requestBody, writer.body.Bytes())
		recorder.Enqueue(entry)
	}
}

// buildEntry assembles the audit entry for one finished request.
func buildEntry(c *gin.Context, overrides audit.Overrides, userID string, requestBody map[string]interface{}, responseBody []byte) *models.AuditLog {
	path := c.Request.URL.Path
	method := c.Request.Method

	entityType, extractedID := audit.ExtractEntityInfo(path)
	if overrides.EntityType != "" {
		entityType = overrides.EntityType
	}

	entityID := resolveEntityID(c, overrides, entityType, extractedID, userID, requestBody)

	actionType := overrides.ActionType
	if actionType == "" {
		actionType = audit.ActionType(method, path)
	}

	description := overrides.Description
	if description == "" {
		description = fmt.Sprintf("%s %s", method, c.Request.URL.RequestURI())
	}

	status, errorMessage := audit.ClassifyStatus(c.Writer.Status(), parseJSONObject(responseBody))

	entry := &models.AuditLog{
		UserID:      userID,
		ActionType:  actionType,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		Status:      status,
		CreatedAt:   time.Now(),
	}

	if email := c.GetString(UserEmailKey); email != "" {
		entry.UserEmail = &email
	}
	if position := c.GetString(UserPositionKey); position != "" {
		entry.UserPosition = &position
	}

	if ip := c.ClientIP(); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		entry.UserAgent = &ua
	}

	entry.OldValues = overrides.OldValues
	entry.NewValues = overrides.NewValues
	if entry.NewValues == nil && method != "GET" {
		entry.NewValues = requestBody
	}

	if status != models.StatusSuccess && errorMessage != "" {
		entry.ErrorMessage = &errorMessage
	}

	return entry
}

// resolveEntityID picks the entity id from the highest-priority source available:
// handler override, path pattern, route :id param, conventional body id fields, a
// usable trailing path segment, and finally a synthesized placeholder.
func resolveEntityID(c *gin.Context, overrides audit.Overrides, entityType, extractedID, userID string, requestBody map[string]interface{}) string {
	if overrides.EntityID != "" {
		return overrides.EntityID
	}
	if extractedID != "" {
		return extractedID
	}
	if id := c.Param("id"); id != "" {
		return id
	}

	for _, key := range bodyFieldIDKeys {
		if v, ok := requestBody[key]; ok && v != nil {
			switch id := v.(type) {
			case string:
				if id != "" {
					return id
				}
			case float64:
				return fmt.Sprintf("%.0f", id)
			}
		}
	}

	if id := audit.LastPathSegmentID(c.Request.URL.Path, entityType); id != "" {
		return id
	}

	return audit.SynthesizeEntityID(entityType, userID, time.Now().UnixMilli())
}

// captureRequestBody reads and restores the request body, returning it as a JSON
// object with sensitive fields removed. Non-JSON, oversized, and empty bodies all
// come back nil.
func captureRequestBody(c *gin.Context) map[string]interface{} {
	if c.Request.Body == nil || c.Request.Method == "GET" {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCapturedBody+1))
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))
	if err != nil || len(raw) == 0 || len(raw) > maxCapturedBody {
		return nil
	}

	body := parseJSONObject(raw)
	for _, key := range sensitiveBodyKeys {
		delete(body, key)
	}
	return body
}

func parseJSONObject(data []byte) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}
