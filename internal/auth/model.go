package auth

import (
	"time"

	"student-records/internal/db"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an operator account allowed into the pages and the API.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int        `bun:"id,pk,autoincrement"`
	Username     string     `bun:"username,type:varchar(150),unique,notnull"`
	Email        string     `bun:"email,type:varchar(254)"`
	PasswordHash string     `bun:"password_hash,notnull"`
	IsActive     bool       `bun:"is_active,notnull,default:true"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	LastLogin    *time.Time `bun:"last_login"`
}

// Session is the server-side half of a login. Deleting the row revokes
// every token that names it.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:se"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	UserID    int       `bun:"user_id,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Models lists the tables this package owns, in creation order.
func Models() []interface{} {
	return []interface{}{(*User)(nil), (*Session)(nil)}
}

func Indexes() []db.Index {
	return []db.Index{
		{Model: (*Session)(nil), Name: "idx_sessions_user_id", Columns: []string{"user_id"}},
		{Model: (*Session)(nil), Name: "idx_sessions_expires_at", Columns: []string{"expires_at"}},
	}
}
