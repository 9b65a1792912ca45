package models

import "time"

// Role IDs used by the authorization middleware.
const (
	RoleSubmitter    = 1
	RoleChair        = 2
	RoleAreaDirector = 3
	RoleSecretariat  = 4
)

type User struct {
	UserID       int        `gorm:"primaryKey;column:user_id" json:"user_id"`
	Email        string     `gorm:"column:email;uniqueIndex" json:"email"`
	FullName     string     `gorm:"column:full_name" json:"full_name"`
	PasswordHash string     `gorm:"column:password_hash" json:"-"`
	RoleID       int        `gorm:"column:role_id" json:"role_id"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt    *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// IsReviewer reports whether the user may record ballot positions.
func (u User) IsReviewer() bool {
	return u.RoleID == RoleAreaDirector
}
