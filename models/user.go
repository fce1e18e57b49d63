package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                 bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string        `bson:"name" json:"name"`
	Email              string        `bson:"email" json:"email"`
	Photo              string        `bson:"photo" json:"photo"`
	PasswordHash       string        `bson:"passwordHash" json:"-"` // never expose
	Role               Role          `bson:"role" json:"role"`
	Active             bool          `bson:"active" json:"-"`
	PasswordChangedAt  *time.Time    `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken string        `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetUntil *time.Time    `bson:"passwordResetExpires,omitempty" json:"-"`
	CreatedAt          time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// PasswordChangedAfter reports whether the password was changed after the
// given moment. Tokens issued before a password change must be rejected.
func (u *User) PasswordChangedAfter(t time.Time) bool {
	return u.PasswordChangedAt != nil && u.PasswordChangedAt.After(t)
}

// ResetTokenExpired is true when no reset token is outstanding or its
// window has closed.
func (u *User) ResetTokenExpired(now time.Time) bool {
	return u.PasswordResetUntil == nil || now.After(*u.PasswordResetUntil)
}
