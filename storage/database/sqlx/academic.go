package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/avalia/avalia/core/academic"
)

type (
	departmentRow struct {
		ID           int64  `db:"id"`
		Code         string `db:"code"`
		Name         string `db:"name"`
		Abbreviation string `db:"abbreviation"`
	}

	disciplineRow struct {
		ID           int64  `db:"id"`
		Name         string `db:"name"`
		DepartmentID int64  `db:"department_id"`
	}

	groupRow struct {
		ID           int64  `db:"id"`
		Code         string `db:"code"`
		Label        string `db:"label"`
		Term         string `db:"term"`
		Schedule     string `db:"schedule"`
		DisciplineID int64  `db:"discipline_id"`
	}

	enrollmentRow struct {
		ID        int64     `db:"id"`
		UserID    string    `db:"user_id"`
		GroupID   int64     `db:"group_id"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func (r departmentRow) model() academic.Department { return academic.Department(r) }
func (r disciplineRow) model() academic.Discipline { return academic.Discipline(r) }
func (r groupRow) model() academic.Group           { return academic.Group(r) }
func (r enrollmentRow) model() academic.Enrollment { return academic.Enrollment(r) }

type academicRepository struct {
	db *sqlx.DB
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *sqlx.DB) *academicRepository {
	return &academicRepository{db: db}
}

func (repo academicRepository) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, trapNoRowsErr(err, academic.ErrNotFound, "counting "+table)
	}
	return n, nil
}

func (repo academicRepository) CountDepartments(ctx context.Context) (int, error) {
	return repo.count(ctx, "departments")
}

func (repo academicRepository) FirstDepartment(ctx context.Context) (academic.Department, error) {
	var row departmentRow
	q := `SELECT id, code, name, abbreviation FROM departments ORDER BY id LIMIT 1`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q); err != nil {
		return academic.Department{}, trapNoRowsErr(err, academic.ErrNotFound, "selecting department")
	}
	return row.model(), nil
}

func (repo academicRepository) CreateDepartment(ctx context.Context, dep academic.Department) (academic.Department, error) {
	var row departmentRow
	q := `INSERT INTO departments (code, name, abbreviation) VALUES ($1, $2, $3)
		RETURNING id, code, name, abbreviation`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, dep.Code, dep.Name, dep.Abbreviation); err != nil {
		return academic.Department{}, trapConstraintErr(err, "inserting department")
	}
	return row.model(), nil
}

func (repo academicRepository) CountDisciplines(ctx context.Context) (int, error) {
	return repo.count(ctx, "disciplines")
}

func (repo academicRepository) FirstDiscipline(ctx context.Context) (academic.Discipline, error) {
	var row disciplineRow
	q := `SELECT id, name, department_id FROM disciplines ORDER BY id LIMIT 1`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q); err != nil {
		return academic.Discipline{}, trapNoRowsErr(err, academic.ErrNotFound, "selecting discipline")
	}
	return row.model(), nil
}

func (repo academicRepository) CreateDiscipline(ctx context.Context, disc academic.Discipline) (academic.Discipline, error) {
	var row disciplineRow
	q := `INSERT INTO disciplines (name, department_id) VALUES ($1, $2) RETURNING id, name, department_id`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, disc.Name, disc.DepartmentID); err != nil {
		return academic.Discipline{}, trapConstraintErr(err, "inserting discipline")
	}
	return row.model(), nil
}

func (repo academicRepository) GetGroupByCode(ctx context.Context, code string) (academic.Group, error) {
	var row groupRow
	q := `SELECT id, code, label, term, schedule, discipline_id FROM class_groups WHERE code = $1`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, code); err != nil {
		return academic.Group{}, trapNoRowsErr(err, academic.ErrNotFound, "selecting group")
	}
	return row.model(), nil
}

func (repo academicRepository) CreateGroup(ctx context.Context, grp academic.Group) (academic.Group, error) {
	var row groupRow
	q := `INSERT INTO class_groups (code, label, term, schedule, discipline_id) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, code, label, term, schedule, discipline_id`
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, grp.Code, grp.Label, grp.Term, grp.Schedule, grp.DisciplineID)
	if err != nil {
		return academic.Group{}, trapConstraintErr(err, "inserting group")
	}
	return row.model(), nil
}

func (repo academicRepository) UpdateGroup(ctx context.Context, grp academic.Group) (academic.Group, error) {
	var row groupRow
	q := `UPDATE class_groups SET code = $2, label = $3, term = $4, schedule = $5, discipline_id = $6 WHERE id = $1
		RETURNING id, code, label, term, schedule, discipline_id`
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, grp.ID, grp.Code, grp.Label, grp.Term, grp.Schedule, grp.DisciplineID)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return academic.Group{}, academic.ErrNotFound
		}
		return academic.Group{}, trapConstraintErr(err, "updating group")
	}
	return row.model(), nil
}

func (repo academicRepository) GetEnrollment(ctx context.Context, userID string, groupID int64) (academic.Enrollment, error) {
	var row enrollmentRow
	q := `SELECT id, user_id, group_id, created_at FROM enrollments WHERE user_id = $1 AND group_id = $2`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, userID, groupID); err != nil {
		return academic.Enrollment{}, trapNoRowsErr(err, academic.ErrNotFound, "selecting enrollment")
	}
	return row.model(), nil
}

func (repo academicRepository) CreateEnrollment(ctx context.Context, enr academic.Enrollment) (academic.Enrollment, error) {
	if enr.CreatedAt.IsZero() {
		enr.CreatedAt = time.Now()
	}

	var row enrollmentRow
	q := `INSERT INTO enrollments (user_id, group_id, created_at) VALUES ($1, $2, $3)
		RETURNING id, user_id, group_id, created_at`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, enr.UserID, enr.GroupID, enr.CreatedAt.UTC()); err != nil {
		return academic.Enrollment{}, trapConstraintErr(err, "inserting enrollment")
	}
	return row.model(), nil
}

func (repo academicRepository) QueryEnrollments(ctx context.Context, groupID int64) ([]academic.Enrollment, error) {
	var rows []enrollmentRow
	q := `SELECT id, user_id, group_id, created_at FROM enrollments WHERE group_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &rows, q, groupID); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrs := make([]academic.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrs = append(enrs, r.model())
	}
	return enrs, nil
}
