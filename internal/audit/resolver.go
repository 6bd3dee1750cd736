// Package audit captures who did what across the HTTP API. The middleware in
// internal/middleware assembles one Entry per request after the response is written;
// this package owns the classification rules (entity, action, outcome), the
// asynchronous recorder that persists entries, and the optional shippers that forward
// them to external destinations.
package audit

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/church-registry/church-registry/internal/db/models"
)

// pathMappings maps route prefixes to entity types. Lookup takes the longest matching
// prefix, so /api/church-records/department-officers resolves to department_officer
// even though /api/church-records/departments is also a prefix of the path string.
var pathMappings = map[string]string{
	"/api/church-records/members":             "member",
	"/api/church-records/accounts":            "account",
	"/api/church-records/departments":         "department",
	"/api/church-records/ministries":          "ministry",
	"/api/church-records/events":              "event",
	"/api/church-records/approvals":           "approval",
	"/api/church-records/tithes":              "tithe",
	"/api/church-records/church-leaders":      "church_leader",
	"/api/church-records/department-officers": "department_officer",
	"/api/church-records/child-dedications":   "child_dedication",
	"/api/church-records/burial-services":     "burial_service",
	"/api/services/water-baptisms":            "water_baptism",
	"/api/services/marriage-services":         "marriage_service",
	"/api/transactions":                       "transaction",
	"/api/member-registration":                "member_registration",
	"/api/audit-trail":                        "audit_trail",
	"/api/archives":                           "archive",
	"/api/announcements":                      "announcement",
	"/api/forms":                              "form",
	"/api/cms":                                "cms_page",
	"/api/dashboard":                          "dashboard",
	"/api/auth":                               "account",
}

// sortedPrefixes is pathMappings keys ordered longest first.
var sortedPrefixes = func() []string {
	prefixes := make([]string, 0, len(pathMappings))
	for p := range pathMappings {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return prefixes
}()

// validEntityName gates the fallback segment inference. Only segments that already
// look like entity names after normalization are used; anything else stays unknown.
var validEntityName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// idPatterns extract a numeric record id from conventional route shapes. Order
// matters: the generic trailing-number pattern comes last so the more specific
// operation patterns win.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/get\w+ById/(\d+)`),
	regexp.MustCompile(`(?i)/update\w+/(\d+)`),
	regexp.MustCompile(`(?i)/delete\w+/(\d+)`),
	regexp.MustCompile(`(?i)/get\w+By\w+/(\d+)`),
	regexp.MustCompile(`(?i)/update\w+Status/(\d+)`),
	regexp.MustCompile(`/(\d+)(?:\?|$)`),
}

// ExtractEntityInfo resolves the entity type and, when present in the path, the
// entity id for a request path. Entity type resolution is longest prefix first; paths
// outside the known map fall back to the normalized second path segment
// (/api/<segment>/...) when that segment looks like an entity name, otherwise
// "unknown". The returned id is empty when none of the path shapes match.
func ExtractEntityInfo(path string) (entityType, entityID string) {
	entityType = "unknown"

	for _, prefix := range sortedPrefixes {
		if strings.HasPrefix(path, prefix) {
			entityType = pathMappings[prefix]
			break
		}
	}

	if entityType == "unknown" {
		segments := splitPath(path)
		if len(segments) >= 2 && segments[0] == "api" {
			normalized := strings.ToLower(strings.ReplaceAll(segments[1], "-", "_"))
			if validEntityName.MatchString(normalized) {
				entityType = normalized
			}
		}
	}

	for _, pattern := range idPatterns {
		if m := pattern.FindStringSubmatch(path); m != nil {
			entityID = m[1]
			break
		}
	}

	return entityType, entityID
}

var (
	getByIDPath   = regexp.MustCompile(`(?i)/get\w+byid/\d+`)
	getByPath     = regexp.MustCompile(`(?i)/get\w+by\w+/\d+`)
	trailingIDSeg = regexp.MustCompile(`/(\d+)(?:\?|$)`)
)

// ActionType classifies a method/path pair into an action constant. Path keywords
// take precedence over the HTTP method: a POST to /login is a LOGIN, not a CREATE.
// The order of checks is significant and mirrors how routes are named across the API.
func ActionType(method, path string) string {
	upperMethod := strings.ToUpper(method)
	lowerPath := strings.ToLower(path)

	switch {
	case strings.Contains(lowerPath, "/login"):
		return models.ActionLogin
	case strings.Contains(lowerPath, "/logout"):
		return models.ActionLogout
	case strings.Contains(lowerPath, "/forgotpassword"):
		return models.ActionForgotPassword
	case strings.Contains(lowerPath, "/verifycredentials"):
		return models.ActionVerifyCredentials
	case strings.Contains(lowerPath, "/getcertificatedata"):
		return models.ActionViewCertificate
	case strings.Contains(lowerPath, "/exportexcel"), strings.Contains(lowerPath, "/export"):
		return models.ActionExport
	case strings.Contains(lowerPath, "/check"):
		return models.ActionCheck
	case strings.Contains(lowerPath, "/create"), strings.Contains(lowerPath, "/register"):
		return models.ActionCreate
	case strings.Contains(lowerPath, "/update"):
		return models.ActionUpdate
	case strings.Contains(lowerPath, "/delete"):
		return models.ActionDelete
	}

	if upperMethod == "GET" {
		// Single-record reads: getXById/:id, getXByY/:id, certificate views, /me,
		// and bare trailing numeric ids.
		if strings.Contains(lowerPath, "/getbyid") ||
			strings.Contains(lowerPath, "/getby") ||
			strings.HasSuffix(lowerPath, "/me") ||
			getByIDPath.MatchString(path) ||
			getByPath.MatchString(path) ||
			trailingIDSeg.MatchString(path) {
			return models.ActionView
		}
		return models.ActionViewList
	}

	switch upperMethod {
	case "POST":
		return models.ActionCreate
	case "PUT", "PATCH":
		return models.ActionUpdate
	case "DELETE":
		return models.ActionDelete
	default:
		return models.ActionUnknown
	}
}

// ClassifyStatus derives the audit outcome from the response status code and, when
// the body parsed as a JSON object, the conventional envelope fields. An explicit
// success flag in the body overrides the status code; a bare error field marks the
// entry failed (or error on 5xx) and surfaces the message.
func ClassifyStatus(statusCode int, body map[string]interface{}) (status string, errorMessage string) {
	switch {
	case statusCode >= 200 && statusCode < 300:
		status = models.StatusSuccess
	case statusCode >= 400 && statusCode < 500:
		status = models.StatusFailed
	case statusCode >= 500:
		status = models.StatusError
	default:
		status = models.StatusSuccess
	}

	if body == nil {
		return status, ""
	}

	bodyMessage := func() string {
		if v, ok := body["error"].(string); ok && v != "" {
			return v
		}
		if v, ok := body["message"].(string); ok && v != "" {
			return v
		}
		return ""
	}

	if success, ok := body["success"].(bool); ok {
		if success {
			return models.StatusSuccess, ""
		}
		return models.StatusFailed, bodyMessage()
	}

	if _, ok := body["error"]; ok {
		if statusCode >= 500 {
			return models.StatusError, bodyMessage()
		}
		return models.StatusFailed, bodyMessage()
	}

	if status != models.StatusSuccess {
		return status, bodyMessage()
	}
	return status, ""
}

// SynthesizeEntityID builds the placeholder id recorded when a request carries no
// identifiable record id anywhere. Entries always carry a non-empty entity_id.
func SynthesizeEntityID(entityType, userID string, unixMillis int64) string {
	if userID == "" {
		userID = "unknown"
	}
	return fmt.Sprintf("%s_%s_%d", entityType, userID, unixMillis)
}

// lastSegmentPattern accepts path tails usable as entity ids verbatim.
var lastSegmentPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// LastPathSegmentID returns the final path segment when it is usable as an entity id
// (alphanumeric plus underscore and hyphen, and not just the entity type repeated).
// Empty string means no usable segment.
func LastPathSegmentID(path, entityType string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	if lastSegmentPattern.MatchString(last) && last != entityType {
		return last
	}
	return ""
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, seg := range parts {
		if seg != "" && !strings.Contains(seg, "?") {
			segments = append(segments, seg)
		}
	}
	return segments
}
