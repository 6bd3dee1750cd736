package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/church-registry/church-registry/internal/db/models"
)

// MemberRepository handles member database operations
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: sqlx.NewDb(db, "postgres")}
}

// MemberFilters contains filters for listing members.
type MemberFilters struct {
	Search *string
	Status *string
}

// Create inserts a new member and returns it with generated fields populated.
func (r *MemberRepository) Create(ctx context.Context, m *models.Member) (*models.Member, error) {
	query := `
		INSERT INTO tbl_members (firstname, middle_name, lastname, email, contact_no, address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING member_id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		m.Firstname, m.MiddleName, m.Lastname, m.Email, m.ContactNo, m.Address, m.Status,
	).Scan(&m.MemberID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List retrieves members with optional filters and pagination.
func (r *MemberRepository) List(ctx context.Context, filters MemberFilters, limit, offset int) ([]*models.Member, int, error) {
	countQuery := `SELECT COUNT(*) FROM tbl_members WHERE 1=1`
	query := `SELECT * FROM tbl_members WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.Search != nil && *filters.Search != "" {
		pattern := "%" + *filters.Search + "%"
		clause := fmt.Sprintf(
			` AND (firstname ILIKE $%d OR lastname ILIKE $%d OR email ILIKE $%d)`,
			paramIndex, paramIndex, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, pattern)
		paramIndex++
	}
	if filters.Status != nil {
		clause := fmt.Sprintf(` AND status = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.Status)
		paramIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY lastname ASC, firstname ASC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	members := make([]*models.Member, 0)
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

// GetByID retrieves a member by ID. Returns (nil, nil) when no row matches.
func (r *MemberRepository) GetByID(ctx context.Context, memberID int64) (*models.Member, error) {
	m := &models.Member{}
	err := r.db.GetContext(ctx, m, `SELECT * FROM tbl_members WHERE member_id = $1`, memberID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Update applies new field values to an existing member. Returns (nil, nil) when the
// member does not exist.
func (r *MemberRepository) Update(ctx context.Context, memberID int64, m *models.Member) (*models.Member, error) {
	query := `
		UPDATE tbl_members
		SET firstname = $2, middle_name = $3, lastname = $4, email = $5,
		    contact_no = $6, address = $7, status = $8, updated_at = $9
		WHERE member_id = $1
		RETURNING member_id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		memberID, m.Firstname, m.MiddleName, m.Lastname, m.Email,
		m.ContactNo, m.Address, m.Status, time.Now(),
	).Scan(&m.MemberID, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a member row. Returns false when no row matched. Callers are
// expected to archive the row first; Delete itself is unconditional.
func (r *MemberRepository) Delete(ctx context.Context, memberID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tbl_members WHERE member_id = $1`, memberID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
