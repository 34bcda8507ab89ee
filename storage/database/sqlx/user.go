package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/avalia/avalia/core/user"
)

const userColumns = `id, name, email, registration_id, role, program, is_active, password_hash,
	first_access_token, first_access_issued_at, reset_token, created_at, updated_at, last_login`

type userRow struct {
	ID                  string         `db:"id"`
	Name                string         `db:"name"`
	Email               string         `db:"email"`
	RegistrationID      string         `db:"registration_id"`
	Role                string         `db:"role"`
	Program             string         `db:"program"`
	IsActive            sql.NullBool   `db:"is_active"`
	PasswordHash        []byte         `db:"password_hash"`
	FirstAccessToken    sql.NullString `db:"first_access_token"`
	FirstAccessIssuedAt sql.NullTime   `db:"first_access_issued_at"`
	ResetToken          sql.NullString `db:"reset_token"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
	LastLogin           sql.NullTime   `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (repo userRepository) toRow(usr user.User) userRow {
	row := userRow{
		ID:                  usr.ID,
		Name:                usr.Name,
		Email:               usr.Email,
		RegistrationID:      usr.RegistrationID,
		Role:                usr.Role,
		Program:             usr.Program,
		PasswordHash:        usr.PasswordHash,
		FirstAccessToken:    nullString(usr.FirstAccessToken),
		FirstAccessIssuedAt: nullTime(usr.FirstAccessIssuedAt),
		ResetToken:          nullString(usr.ResetToken),
		CreatedAt:           usr.CreatedAt.UTC(),
		UpdatedAt:           usr.UpdatedAt.UTC(),
		LastLogin:           nullTime(usr.LastLogin),
	}
	if usr.IsActive != nil {
		row.IsActive = sql.NullBool{Bool: *usr.IsActive, Valid: true}
	}
	return row
}

func (repo userRepository) fromRow(row userRow) user.User {
	usr := user.User{
		ID:                  row.ID,
		Name:                row.Name,
		Email:               row.Email,
		RegistrationID:      row.RegistrationID,
		Role:                row.Role,
		Program:             row.Program,
		PasswordHash:        row.PasswordHash,
		FirstAccessToken:    row.FirstAccessToken.String,
		FirstAccessIssuedAt: row.FirstAccessIssuedAt.Time,
		ResetToken:          row.ResetToken.String,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
		LastLogin:           row.LastLogin.Time,
	}
	if row.IsActive.Valid {
		usr.SetActive(row.IsActive.Bool)
	}
	return usr
}

func (repo userRepository) CheckUniqueness(ctx context.Context, email, registrationID string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}

	var emailTaken bool
	q := `SELECT email = $1 FROM users
		WHERE (email = $1 OR registration_id = $2) AND id::text <> ALL($3)
		ORDER BY email = $1 DESC LIMIT 1`
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &emailTaken, q, email, registrationID, pq.Array(ids))
	switch {
	case errors.Cause(err) == sql.ErrNoRows:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case emailTaken:
		return user.ErrEmailExists
	default:
		return user.ErrRegistrationExists
	}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.toRow(usr)

	var row userRow
	q := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + userColumns
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q,
		r.ID, r.Name, r.Email, r.RegistrationID, r.Role, r.Program, r.IsActive, r.PasswordHash,
		r.FirstAccessToken, r.FirstAccessIssuedAt, r.ResetToken, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	)
	if err != nil {
		return user.User{}, trapConstraintErr(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		where string
		arg   interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		where, arg = "id = $1", filter.ID
	case filter.Email != "":
		where, arg = "email = $1", filter.Email
	case filter.RegistrationID != "":
		where, arg = "registration_id = $1", filter.RegistrationID
	case len(filter.EmailOrRegistration) > 0:
		where, arg = "(email = ANY($1) OR registration_id = ANY($1))", pq.Array(filter.EmailOrRegistration)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` ORDER BY created_at LIMIT 1`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := repo.toRow(usr)

	var row userRow
	q := `UPDATE users SET
			name = $2, email = $3, registration_id = $4, role = $5, program = $6, is_active = $7,
			password_hash = $8, first_access_token = $9, first_access_issued_at = $10, reset_token = $11,
			updated_at = $12, last_login = $13
		WHERE id = $1
		RETURNING ` + userColumns
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q,
		r.ID, r.Name, r.Email, r.RegistrationID, r.Role, r.Program, r.IsActive,
		r.PasswordHash, r.FirstAccessToken, r.FirstAccessIssuedAt, r.ResetToken,
		r.UpdatedAt, r.LastLogin,
	)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, trapConstraintErr(err, "updating user")
	}
	return repo.fromRow(row), nil
}
