package user

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/avalia/avalia/core"
)

// Roles
const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
	RoleAdmin     = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleProfessor, RoleAdmin}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Professor", Value: RoleProfessor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

// IsRole reports whether r is one of AllRoles.
func IsRole(r string) bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	RegistrationID string `json:"registration_id"`
	Role           string `json:"role"`
	Program        string `json:"program,omitempty"`
	IsActive       *bool  `json:"is_active"`
	PasswordHash   []byte `json:"-"`

	// single use tokens
	FirstAccessToken    string    `json:"-"`
	FirstAccessIssuedAt time.Time `json:"-"` // UTC
	ResetToken          string    `json:"-"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

// Active is true unless the account was explicitly deactivated.
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u *User) IsProfessor() bool { return u.Role == RoleProfessor }
func (u *User) IsStudent() bool   { return u.Role == RoleStudent }

// IssueFirstAccessToken sets a new random first access token on u and returns it.
func (u *User) IssueFirstAccessToken(now time.Time) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	u.FirstAccessToken = base64.RawURLEncoding.EncodeToString(b)
	u.FirstAccessIssuedAt = now.UTC()
	return u.FirstAccessToken, nil
}

// GetFilter selects a single User. The first non-empty field wins.
type GetFilter struct {
	ID                  string
	Email               string
	RegistrationID      string
	EmailOrRegistration []string // matches email or registration ID against any of the values
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	RegistrationID  string `json:"registration_id" validate:"required"`
	Role            string `json:"role" validate:"required,role"`
	Program         string `json:"program"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.RegistrationID = core.CleanString(nu.RegistrationID)
	nu.Program = core.CleanString(nu.Program)
	nu.Role = core.CleanString(nu.Role, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email, nu.RegistrationID)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// FirstAccess is sent by a freshly imported User to pick their own password.
type FirstAccess struct {
	Email           string `json:"email" validate:"required,email"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (fa *FirstAccess) Validate(validate *validator.Validate) error {
	fa.Email = core.CleanString(fa.Email, true /* lower */)
	fa.Token = core.CleanString(fa.Token)
	return validate.Struct(fa)
}
