// audit_repository.go implements AuditRepository, providing database queries for writing
// and retrieving audit trail entries with support for filtered, paginated queries.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/church-registry/church-registry/internal/db/models"
)

// AuditRepository handles audit trail database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	Search     *string // matches description, user name, user email, or entity id
	UserID     *string
	ActionType *string
	EntityType *string
	Status     *string
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string // newest (default) | oldest | action_type | entity_type | status
}

// defaultAuditWindow bounds unfiltered list queries so a fresh dashboard load never
// sorts the entire audit trail table.
const defaultAuditWindow = 30 * 24 * time.Hour

// auditSortColumns maps SortBy values to ORDER BY clauses. Anything not in this map
// falls back to newest-first.
var auditSortColumns = map[string]string{
	"newest":      "created_at DESC",
	"oldest":      "created_at ASC",
	"action_type": "action_type ASC, created_at DESC",
	"entity_type": "entity_type ASC, created_at DESC",
	"status":      "status ASC, created_at DESC",
}

const auditColumns = `log_id, user_id, user_email, user_name, user_position, action_type,
		entity_type, entity_id, description, ip_address, user_agent, old_values, new_values,
		status, error_message, created_at`

// Create inserts a single audit log row. It is a pure insert: the caller (the audit
// recorder) owns the decision to swallow or surface the error.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) (int64, error) {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	oldJSON, err := marshalNullable(log.OldValues)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal old_values: %w", err)
	}
	newJSON, err := marshalNullable(log.NewValues)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal new_values: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_id, user_email, user_name, user_position, action_type,
			entity_type, entity_id, description, ip_address, user_agent, old_values, new_values,
			status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING log_id
	`

	var logID int64
	err = r.db.QueryRowContext(ctx, query,
		log.UserID,
		log.UserEmail,
		log.UserName,
		log.UserPosition,
		log.ActionType,
		log.EntityType,
		log.EntityID,
		log.Description,
		log.IPAddress,
		log.UserAgent,
		oldJSON,
		newJSON,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt,
	).Scan(&logID)
	if err != nil {
		return 0, err
	}

	log.LogID = logID
	return logID, nil
}

// List retrieves audit logs with optional filters and pagination. When no date range
// is supplied the query is bounded to the last 30 days.
func (r *AuditRepository) List(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE 1=1`
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE 1=1`, auditColumns)

	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		countQuery += fmt.Sprintf(clause, paramIndex)
		query += fmt.Sprintf(clause, paramIndex)
		args = append(args, value)
		paramIndex++
	}

	if filters.Search != nil && *filters.Search != "" {
		pattern := "%" + *filters.Search + "%"
		clause := fmt.Sprintf(
			` AND (description ILIKE $%d OR user_name ILIKE $%d OR user_email ILIKE $%d OR entity_id = $%d)`,
			paramIndex, paramIndex, paramIndex, paramIndex+1)
		countQuery += clause
		query += clause
		args = append(args, pattern, *filters.Search)
		paramIndex += 2
	}

	if filters.UserID != nil {
		addFilter(` AND user_id = $%d`, *filters.UserID)
	}
	if filters.ActionType != nil {
		addFilter(` AND action_type = $%d`, *filters.ActionType)
	}
	if filters.EntityType != nil {
		addFilter(` AND entity_type = $%d`, *filters.EntityType)
	}
	if filters.Status != nil {
		addFilter(` AND status = $%d`, *filters.Status)
	}

	dateFrom := filters.DateFrom
	dateTo := filters.DateTo
	if dateFrom == nil && dateTo == nil {
		from := time.Now().Add(-defaultAuditWindow)
		dateFrom = &from
	}
	if dateFrom != nil {
		addFilter(` AND created_at >= $%d`, *dateFrom)
	}
	if dateTo != nil {
		addFilter(` AND created_at <= $%d`, *dateTo)
	}

	// Get total count
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy, ok := auditSortColumns[filters.SortBy]
	if !ok {
		orderBy = auditSortColumns["newest"]
	}

	query += fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, orderBy, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}

	return logs, total, rows.Err()
}

// GetByID retrieves a single audit log entry by ID. Returns (nil, nil) when no row
// matches.
func (r *AuditRepository) GetByID(ctx context.Context, logID int64) (*models.AuditLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE log_id = $1`, auditColumns)

	row := r.db.QueryRowContext(ctx, query, logID)
	log, err := scanAuditLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

// AuditSummary aggregates audit trail counts for the dashboard.
type AuditSummary struct {
	Total        int64            `json:"total"`
	ByActionType map[string]int64 `json:"by_action_type"`
	ByStatus     map[string]int64 `json:"by_status"`
	ByEntityType map[string]int64 `json:"by_entity_type"`
}

// GetSummary returns aggregate counts by action type, status, and entity type.
func (r *AuditRepository) GetSummary(ctx context.Context) (*AuditSummary, error) {
	summary := &AuditSummary{
		ByActionType: make(map[string]int64),
		ByStatus:     make(map[string]int64),
		ByEntityType: make(map[string]int64),
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&summary.Total); err != nil {
		return nil, err
	}

	groupCounts := func(column string, dest map[string]int64) error {
		// column is one of three hardcoded names, never user input
		rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT %s, COUNT(*) FROM audit_logs GROUP BY %s ORDER BY COUNT(*) DESC`, column, column))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				return err
			}
			dest[key] = count
		}
		return rows.Err()
	}

	if err := groupCounts("action_type", summary.ByActionType); err != nil {
		return nil, err
	}
	if err := groupCounts("status", summary.ByStatus); err != nil {
		return nil, err
	}
	if err := groupCounts("entity_type", summary.ByEntityType); err != nil {
		return nil, err
	}

	return summary, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditLog(row rowScanner) (*models.AuditLog, error) {
	log := &models.AuditLog{}
	var oldJSON, newJSON []byte

	err := row.Scan(
		&log.LogID,
		&log.UserID,
		&log.UserEmail,
		&log.UserName,
		&log.UserPosition,
		&log.ActionType,
		&log.EntityType,
		&log.EntityID,
		&log.Description,
		&log.IPAddress,
		&log.UserAgent,
		&oldJSON,
		&newJSON,
		&log.Status,
		&log.ErrorMessage,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if oldJSON != nil {
		if err := json.Unmarshal(oldJSON, &log.OldValues); err != nil {
			return nil, err
		}
	}
	if newJSON != nil {
		if err := json.Unmarshal(newJSON, &log.NewValues); err != nil {
			return nil, err
		}
	}

	return log, nil
}

// marshalNullable marshals a map to JSON, preserving NULL for nil maps.
func marshalNullable(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
