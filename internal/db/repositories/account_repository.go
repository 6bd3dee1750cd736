package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/church-registry/church-registry/internal/db/models"
)

// AccountRepository handles account database operations
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByEmail retrieves an account by email for credential checks. Returns (nil, nil)
// when no account matches.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	acc := &models.Account{}
	err := r.db.QueryRowContext(ctx, `
		SELECT acc_id, email, password, position, created_at
		FROM tbl_accounts
		WHERE email = $1
	`, email).Scan(&acc.AccID, &acc.Email, &acc.Password, &acc.Position, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// GetActorInfo resolves the display identity attached to audit entries for the given
// account id. The member profile is joined by email when one exists; accounts without
// a member row fall back to the account email as the display name. Returns (nil, nil)
// when the account does not exist, so a stale session degrades the audit entry rather
// than failing the request.
func (r *AccountRepository) GetActorInfo(ctx context.Context, accID string) (*models.ActorInfo, error) {
	var (
		email     string
		position  sql.NullString
		firstname sql.NullString
		middle    sql.NullString
		lastname  sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT a.email, a.position, m.firstname, m.middle_name, m.lastname
		FROM tbl_accounts a
		LEFT JOIN tbl_members m ON m.email = a.email
		WHERE a.acc_id = $1
	`, accID).Scan(&email, &position, &firstname, &middle, &lastname)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	info := &models.ActorInfo{UserID: accID, Email: &email}
	if position.Valid {
		info.Position = &position.String
	}

	name := joinName(firstname, middle, lastname)
	if name == "" {
		name = email
	}
	info.FullName = &name

	return info, nil
}

func joinName(parts ...sql.NullString) string {
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Valid && strings.TrimSpace(p.String) != "" {
			fields = append(fields, strings.TrimSpace(p.String))
		}
	}
	return strings.Join(fields, " ")
}

// Create inserts a new account and returns its id. Used by seed tooling and tests.
func (r *AccountRepository) Create(ctx context.Context, email, hashedPassword string, position *string) (int64, error) {
	var accID int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tbl_accounts (email, password, position)
		VALUES ($1, $2, $3)
		RETURNING acc_id
	`, email, hashedPassword, position).Scan(&accID)
	if err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	return accID, nil
}
