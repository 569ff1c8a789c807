package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Account is the canonical identity record behind both token schemes.
// Email is stored lower-cased and is the username carried in token subjects.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID           string     `bun:"id,pk"`
	Email        string     `bun:"email,notnull,unique"`
	Name         string     `bun:"name"`
	PasswordHash string     `bun:"password_hash,notnull"` // bcrypt
	Role         string     `bun:"role,notnull"`          // ATHLETE, COACH or ADMIN
	AthleteID    *int64     `bun:"athlete_id"`
	CoachID      *int64     `bun:"coach_id"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

// Disabled reports whether the account has been deactivated.
func (a *Account) Disabled() bool {
	return a != nil && a.DisabledAt != nil
}
