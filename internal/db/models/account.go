package models

import "time"

// Account is a login account. Accounts carry no name fields of their own; display
// names come from the member record sharing the same email address.
type Account struct {
	AccID     int64     `db:"acc_id"`
	Email     string    `db:"email"`
	Password  string    `db:"password"` // bcrypt hash
	Position  *string   `db:"position"`
	CreatedAt time.Time `db:"created_at"`
}

// ActorInfo is the denormalized identity snapshot written into audit log rows.
// FullName is assembled from the joined member record's first/middle/last names;
// it falls back to the account email when no member row matches.
type ActorInfo struct {
	UserID   string
	Email    *string
	FullName *string
	Position *string
}
