package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/user"
)

// postgres class 23: integrity constraint violation
const integrityViolationClass = "23"

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapConstraintErr maps integrity constraint violations to *core.ValidationError.
// Any other error is wrapped with msg.
func trapConstraintErr(err error, msg string) error {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code.Class() != integrityViolationClass {
		return errors.Wrap(err, msg)
	}

	switch pqErr.Constraint {
	case "users_email_key":
		return user.UniquenessError(user.ErrEmailExists)
	case "users_registration_id_key":
		return user.UniquenessError(user.ErrRegistrationExists)
	case "class_groups_code_key":
		return core.NewValidationError(academic.ErrGroupExists, core.FieldError{Field: "code", Error: academic.ErrGroupExists.Error()})
	case "enrollments_user_id_group_id_key":
		return core.NewValidationError(academic.ErrEnrollmentExists)
	}

	field := pqErr.Column
	if field == "" {
		field = pqErr.Constraint
	}
	return core.NewValidationError(errors.New(pqErr.Message), core.FieldError{Field: field, Error: pqErr.Message})
}
