// Package models - audit_log.go defines the AuditLog model for the append-only audit
// trail, capturing a denormalized actor snapshot, the inferred action and entity, the
// request outcome, and optional before/after values.
package models

import "time"

// Audit action types inferred from request shape. The list mirrors the route
// conventions in use across the API; handlers may also log custom actions.
const (
	ActionLogin             = "LOGIN"
	ActionLogout            = "LOGOUT"
	ActionForgotPassword    = "FORGOT_PASSWORD"
	ActionVerifyCredentials = "VERIFY_CREDENTIALS"
	ActionViewCertificate   = "VIEW_CERTIFICATE"
	ActionExport            = "EXPORT"
	ActionCheck             = "CHECK"
	ActionCreate            = "CREATE"
	ActionUpdate            = "UPDATE"
	ActionDelete            = "DELETE"
	ActionView              = "VIEW"
	ActionViewList          = "VIEW_LIST"
	ActionUnknown           = "UNKNOWN"
)

// Audit outcome statuses. The middleware buckets the HTTP status code into one of
// these, then lets an explicit success/error field in the response body override it.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// AuditLog represents a single audit trail entry for one completed user action.
//
// The user_* fields are a snapshot taken at the time of the action, not a live
// reference; editing an account later does not retroactively change history.
// EntityID is never empty: when no natural identifier can be determined a
// synthetic "<entityType>_<userId>_<timestamp>" value is generated so every row
// remains queryable. Synthetic ids are advisory only and must not be treated as
// unique keys.
type AuditLog struct {
	LogID        int64                  `json:"log_id"`
	UserID       string                 `json:"user_id"`
	UserEmail    *string                `json:"user_email"`
	UserName     *string                `json:"user_name"`
	UserPosition *string                `json:"user_position"`
	ActionType   string                 `json:"action_type"`
	EntityType   string                 `json:"entity_type"`
	EntityID     string                 `json:"entity_id"`
	Description  string                 `json:"description"` // defaults to "<METHOD> <path>"
	IPAddress    *string                `json:"ip_address"`
	UserAgent    *string                `json:"user_agent"`
	OldValues    map[string]interface{} `json:"old_values,omitempty"` // JSONB: row state before an UPDATE
	NewValues    map[string]interface{} `json:"new_values,omitempty"` // JSONB: submitted body for CREATE/UPDATE
	Status       string                 `json:"status"`               // success | failed | error
	ErrorMessage *string                `json:"error_message"`
	CreatedAt    time.Time              `json:"created_at"`
}
