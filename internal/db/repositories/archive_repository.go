// archive_repository.go implements ArchiveRepository: JSON snapshots of deleted rows,
// keyed by source table + original primary key, with restore back into the live table.
//
// Restore re-inserts the stored snapshot via jsonb_populate_record inside a single
// transaction. Conflict with an existing primary key is detected through the unique
// violation raised by the insert itself rather than a separate existence check, so
// concurrent restores of the same id cannot both succeed.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/church-registry/church-registry/internal/db/models"
)

// Sentinel errors surfaced by Restore. The route layer maps these onto 404/409
// responses; everything else is a plain database error.
var (
	ErrArchiveNotFound = errors.New("archive record not found")
	ErrRestoreConflict = errors.New("a row with the original primary key already exists")
	ErrTableNotRestorable = errors.New("source table is not registered for restore")
)

// restorableTables maps known source tables to their primary key column. Snapshots of
// tables outside this registry are still stored (the archive accepts whatever shape it
// is given) but cannot be restored automatically, because restore requires knowing the
// live table's schema and key.
var restorableTables = map[string]string{
	"tbl_members":             "member_id",
	"tbl_accounts":            "acc_id",
	"tbl_tithes":              "tithe_id",
	"tbl_events":              "event_id",
	"tbl_announcements":       "announcement_id",
	"tbl_departments":         "department_id",
	"tbl_department_officers": "department_officer_id",
	"tbl_ministries":          "ministry_id",
	"tbl_church_leaders":      "church_leader_id",
	"tbl_water_baptisms":      "baptism_id",
	"tbl_marriage_services":   "marriage_id",
	"tbl_burial_services":     "burial_id",
	"tbl_child_dedications":   "child_dedication_id",
	"tbl_transactions":        "transaction_id",
}

// IsRestorable reports whether table is registered for automatic restore.
func IsRestorable(table string) bool {
	_, ok := restorableTables[table]
	return ok
}

// ArchiveRepository handles archive database operations
type ArchiveRepository struct {
	db *sql.DB
}

// NewArchiveRepository creates a new ArchiveRepository
func NewArchiveRepository(db *sql.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// ArchiveFilters contains filters for querying archived records
type ArchiveFilters struct {
	Search        *string // matches original_id or snapshot text
	OriginalTable *string
	Restored      *bool
	DateFrom      *time.Time
	DateTo        *time.Time
	SortBy        string // newest (default) | oldest | table
}

var archiveSortColumns = map[string]string{
	"newest": "archived_at DESC",
	"oldest": "archived_at ASC",
	"table":  "original_table ASC, archived_at DESC",
}

const archiveColumns = `archive_id, original_table, original_id, record_data, archived_by,
		archived_at, restored, restored_by, restored_at, restore_notes`

// Create stores a JSON snapshot of a row that is about to be deleted and returns the
// new archive id. Errors propagate to the caller; the best-effort boundary lives in
// the archive helper, not here.
func (r *ArchiveRepository) Create(ctx context.Context, table, originalID string, data map[string]interface{}, archivedBy *string) (int64, error) {
	snapshot, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record snapshot: %w", err)
	}

	query := `
		INSERT INTO archives (original_table, original_id, record_data, archived_by, archived_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING archive_id
	`

	var archiveID int64
	err = r.db.QueryRowContext(ctx, query, table, originalID, snapshot, archivedBy, time.Now()).Scan(&archiveID)
	if err != nil {
		return 0, err
	}
	return archiveID, nil
}

// List retrieves archived records with optional filters and pagination.
func (r *ArchiveRepository) List(ctx context.Context, filters ArchiveFilters, limit, offset int) ([]*models.ArchiveRecord, int, error) {
	countQuery := `SELECT COUNT(*) FROM archives WHERE 1=1`
	query := fmt.Sprintf(`SELECT %s FROM archives WHERE 1=1`, archiveColumns)

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
		clause := fmt.Sprintf(` AND (original_id = $%d OR record_data::text ILIKE $%d)`, paramIndex, paramIndex+1)
		countQuery += clause
		query += clause
		args = append(args, *filters.Search, pattern)
		paramIndex += 2
	}
	if filters.OriginalTable != nil {
		addFilter(` AND original_table = $%d`, *filters.OriginalTable)
	}
	if filters.Restored != nil {
		addFilter(` AND restored = $%d`, *filters.Restored)
	}
	if filters.DateFrom != nil {
		addFilter(` AND archived_at >= $%d`, *filters.DateFrom)
	}
	if filters.DateTo != nil {
		addFilter(` AND archived_at <= $%d`, *filters.DateTo)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy, ok := archiveSortColumns[filters.SortBy]
	if !ok {
		orderBy = archiveSortColumns["newest"]
	}

	query += fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, orderBy, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]*models.ArchiveRecord, 0)
	for rows.Next() {
		rec, err := scanArchiveRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	return records, total, rows.Err()
}

// GetByID retrieves a single archive record by ID. Returns (nil, nil) when no row
// matches.
func (r *ArchiveRepository) GetByID(ctx context.Context, archiveID int64) (*models.ArchiveRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM archives WHERE archive_id = $1`, archiveColumns)

	rec, err := scanArchiveRecord(r.db.QueryRowContext(ctx, query, archiveID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Restore re-inserts an archived snapshot into its original table and marks the
// archive row restored. The whole operation runs in one transaction:
//
//   - unknown archive_id            → ErrArchiveNotFound
//   - table not in the registry    → ErrTableNotRestorable
//   - primary key already present  → ErrRestoreConflict (live table untouched)
//
// The archive row itself is never deleted; a successful restore only stamps
// restored/restored_by/restored_at/restore_notes. Restoring the same archive id a
// second time therefore conflicts unless the live row was deleted again in between.
func (r *ArchiveRepository) Restore(ctx context.Context, archiveID int64, restoredBy *string, notes *string) (*models.ArchiveRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := fmt.Sprintf(`SELECT %s FROM archives WHERE archive_id = $1 FOR UPDATE`, archiveColumns)
	rec, err := scanArchiveRecord(tx.QueryRowContext(ctx, query, archiveID))
	if err == sql.ErrNoRows {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, err
	}

	if !IsRestorable(rec.OriginalTable) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotRestorable, rec.OriginalTable)
	}

	snapshot, err := json.Marshal(rec.RecordData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stored snapshot: %w", err)
	}

	// jsonb_populate_record maps snapshot keys onto the live table's columns by name;
	// keys with no matching column are ignored and missing columns become NULL, so a
	// restore survives additive schema changes since the snapshot was taken.
	table := pq.QuoteIdentifier(rec.OriginalTable)
	insert := fmt.Sprintf(
		`INSERT INTO %s SELECT * FROM jsonb_populate_record(NULL::%s, $1::jsonb)`, table, table)
	if _, err := tx.ExecContext(ctx, insert, snapshot); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return nil, ErrRestoreConflict
		}
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE archives
		SET restored = TRUE, restored_by = $2, restored_at = $3, restore_notes = $4
		WHERE archive_id = $1
	`, archiveID, restoredBy, now, notes)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec.Restored = true
	rec.RestoredBy = restoredBy
	rec.RestoredAt = &now
	rec.RestoreNotes = notes
	return rec, nil
}

// TableSummary is one row of the archive summary breakdown.
type TableSummary struct {
	OriginalTable string `json:"original_table"`
	Total         int64  `json:"total"`
	Restored      int64  `json:"restored"`
}

// ArchiveSummary aggregates archive counts for the dashboard.
type ArchiveSummary struct {
	Total    int64          `json:"total"`
	Restored int64          `json:"restored"`
	Pending  int64          `json:"pending"`
	ByTable  []TableSummary `json:"by_table"`
}

// GetSummary returns archive counts overall and per source table.
func (r *ArchiveRepository) GetSummary(ctx context.Context) (*ArchiveSummary, error) {
	summary := &ArchiveSummary{ByTable: []TableSummary{}}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE restored),
		       COUNT(*) FILTER (WHERE NOT restored)
		FROM archives
	`).Scan(&summary.Total, &summary.Restored, &summary.Pending)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT original_table,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE restored)
		FROM archives
		GROUP BY original_table
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry TableSummary
		if err := rows.Scan(&entry.OriginalTable, &entry.Total, &entry.Restored); err != nil {
			return nil, err
		}
		summary.ByTable = append(summary.ByTable, entry)
	}

	return summary, rows.Err()
}

func scanArchiveRecord(row rowScanner) (*models.ArchiveRecord, error) {
	rec := &models.ArchiveRecord{}
	var snapshot []byte

	err := row.Scan(
		&rec.ArchiveID,
		&rec.OriginalTable,
		&rec.OriginalID,
		&snapshot,
		&rec.ArchivedBy,
		&rec.ArchivedAt,
		&rec.Restored,
		&rec.RestoredBy,
		&rec.RestoredAt,
		&rec.RestoreNotes,
	)
	if err != nil {
		return nil, err
	}

	if snapshot != nil {
		if err := json.Unmarshal(snapshot, &rec.RecordData); err != nil {
			return nil, err
		}
	}

	return rec, nil
}
