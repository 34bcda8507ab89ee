package roster

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/user"
)

// Binder enrolls users in groups.
type Binder struct {
	repo academic.Repository
}

func NewBinder(repo academic.Repository) *Binder {
	return &Binder{repo: repo}
}

// Bind enrolls usr in grp unless already enrolled. created is false for an existing enrollment.
// Constraint violations come back as *core.ValidationError.
func (b *Binder) Bind(ctx context.Context, usr user.User, grp academic.Group) (created bool, err error) {
	_, err = b.repo.GetEnrollment(ctx, usr.ID, grp.ID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, academic.ErrNotFound) {
		return false, errors.Wrap(err, "finding enrollment")
	}

	_, err = b.repo.CreateEnrollment(ctx, academic.Enrollment{
		UserID:    usr.ID,
		GroupID:   grp.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if core.IsValidationError(err) {
			return false, err
		}
		return false, errors.Wrap(err, "creating enrollment")
	}
	return true, nil
}
