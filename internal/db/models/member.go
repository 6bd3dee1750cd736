package models

import "time"

// Member is a church member record. Its delete path goes through the
// archive-before-delete flow.
type Member struct {
	MemberID   int64     `db:"member_id" json:"member_id"`
	Firstname  string    `db:"firstname" json:"firstname"`
	MiddleName *string   `db:"middle_name" json:"middle_name"`
	Lastname   string    `db:"lastname" json:"lastname"`
	Email      *string   `db:"email" json:"email"`
	ContactNo  *string   `db:"contact_no" json:"contact_no"`
	Address    *string   `db:"address" json:"address"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
