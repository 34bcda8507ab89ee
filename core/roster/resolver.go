package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/user"
)

// ResolutionKind tells what the Resolver did with a record.
type ResolutionKind int

const (
	Created ResolutionKind = iota + 1
	Matched
	Invalid // the record lacks required data
	Failed  // the store rejected the new account
)

func (k ResolutionKind) String() string {
	switch k {
	case Created:
		return "created"
	case Matched:
		return "matched"
	case Invalid:
		return "invalid"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Resolution is the typed outcome of Resolver.Resolve.
type Resolution struct {
	Kind    ResolutionKind
	User    user.User
	Reason  string // Invalid & Failed
	Warning string // unmapped occupation
}

// identity holds the fields a record must carry to be resolved.
type identity struct {
	Email          string `json:"email" validate:"required,email"`
	RegistrationID string `json:"matricula" validate:"required"`
}

// Resolver finds the account of a record, or creates it with the provisional password.
type Resolver struct {
	users       user.Repository
	validate    *validator.Validate
	translator  ut.Translator
	defaultRole string
	pwdHash     []byte
	nowFunc     func() time.Time
}

// NewResolver hashes provisionalPassword once; every account created by the Resolver shares that hash.
func NewResolver(users user.Repository, validate *validator.Validate, translator ut.Translator, defaultRole, provisionalPassword string) (*Resolver, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(provisionalPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hashing provisional password")
	}
	if !user.IsRole(defaultRole) {
		return nil, errors.Errorf("invalid default role %q", defaultRole)
	}
	return &Resolver{
		users:       users,
		validate:    validate,
		translator:  translator,
		defaultRole: defaultRole,
		pwdHash:     hash,
		nowFunc:     time.Now,
	}, nil
}

// Resolve matches rec by email, then by registration ID, or creates its account.
// The returned error is only set for store failures that are not constraint violations.
func (r *Resolver) Resolve(ctx context.Context, rec StudentRecord) (Resolution, error) {
	if fault := rec.Fault(); fault != "" {
		return Resolution{Kind: Invalid, Reason: fault}, nil
	}
	id := identity{
		Email:          core.CleanString(rec.Email, true /* lower */),
		RegistrationID: core.CleanString(rec.RegistrationID),
	}
	if err := r.validate.Struct(id); err != nil {
		return Resolution{Kind: Invalid, Reason: r.reason(err)}, nil
	}

	usr, err := r.find(ctx, id)
	if err == nil {
		return Resolution{Kind: Matched, User: usr}, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return Resolution{}, err
	}

	var res Resolution
	role, known := RoleForOccupation(rec.Occupation, r.defaultRole)
	if !known {
		res.Warning = fmt.Sprintf("unknown occupation %q for %s, assigned role %q", rec.Occupation, id.Email, role)
	}

	now := r.nowFunc().UTC()
	usr = user.User{
		Name:           core.CleanString(rec.Name),
		Email:          id.Email,
		RegistrationID: id.RegistrationID,
		Role:           role,
		Program:        core.CleanString(rec.Program),
		PasswordHash:   r.pwdHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if usr.Name == "" {
		usr.Name = id.Email
	}
	usr.SetActive(true)

	if usr, err = r.users.CreateUser(ctx, usr); err != nil {
		if core.IsValidationError(err) {
			res.Kind = Failed
			res.Reason = err.Error()
			return res, nil
		}
		return Resolution{}, errors.Wrap(err, "creating user")
	}
	res.Kind = Created
	res.User = usr
	return res, nil
}

func (r *Resolver) find(ctx context.Context, id identity) (user.User, error) {
	usr, err := r.users.GetUser(ctx, user.GetFilter{Email: id.Email})
	if err == nil || !errors.Is(err, user.ErrNotFound) {
		return usr, errors.Wrap(err, "finding user by email")
	}
	usr, err = r.users.GetUser(ctx, user.GetFilter{RegistrationID: id.RegistrationID})
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return usr, errors.Wrap(err, "finding user by registration ID")
	}
	return usr, err
}

func (r *Resolver) reason(err error) string {
	verrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok || r.translator == nil {
		return err.Error()
	}
	return strings.Join(core.TranslateErrors(verrs, r.translator), ", ")
}
