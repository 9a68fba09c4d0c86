package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

// Valid user roles
const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Roles is a set of permitted roles.
type Roles map[Role]struct{}

func RoleSet(roles ...Role) Roles {
	s := make(Roles, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s Roles) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Stored field names shared by repositories and the query layer.
const (
	UserFieldPassword             = "password"
	UserFieldPasswordChangedAt    = "passwordChangedAt"
	UserFieldPasswordResetToken   = "passwordResetToken"
	UserFieldPasswordResetExpires = "passwordResetExpires"
	UserFieldActive               = "active"
)

// UserHiddenFields are never projected into API responses.
var UserHiddenFields = []string{
	UserFieldPassword,
	UserFieldPasswordResetToken,
	UserFieldPasswordResetExpires,
	UserFieldActive,
}

// ActiveUsers is the implicit filter applied to every user query.
func ActiveUsers() bson.M {
	return bson.M{UserFieldActive: bson.M{"$ne": false}}
}

type User struct {
	ID                   bson.ObjectID `json:"_id" bson:"_id,omitempty" patch:"-"`
	Name                 string        `json:"name" bson:"name" validate:"required,max=60"`
	Email                string        `json:"email" bson:"email" validate:"required,email"`
	Photo                string        `json:"photo,omitempty" bson:"photo,omitempty"`
	Role                 Role          `json:"role" bson:"role" validate:"required,oneof=user guide lead-guide admin"`
	PasswordHash         string        `json:"-" bson:"password"`
	PasswordChangedAt    *time.Time    `json:"passwordChangedAt,omitempty" bson:"passwordChangedAt,omitempty" patch:"-"`
	PasswordResetToken   *string       `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time    `json:"-" bson:"passwordResetExpires,omitempty"`
	Active               bool          `json:"-" bson:"active"`
	CreatedAt            time.Time     `json:"createdAt" bson:"createdAt" patch:"-"`
	Version              int           `json:"-" bson:"__v"`
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at iat. Compared at second granularity, the resolution of iat.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

func (u *User) IDHex() string { return u.ID.Hex() }

type SignupRequest struct {
	Name            string `json:"name" validate:"required,max=60"`
	Email           string `json:"email" validate:"required,email"`
	Photo           string `json:"photo"`
	Password        string `json:"password" validate:"required,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Photo = strings.TrimSpace(r.Photo)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdateMeRequest only carries profile fields. Password fields are decoded
// so the handler can refuse them explicitly.
type UpdateMeRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=60"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize lower-cases the email before validation and storage.
func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
}
