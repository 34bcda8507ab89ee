package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound         = errors.New("not found")
	ErrGroupExists      = errors.New("a group with this code already exists")
	ErrEnrollmentExists = errors.New("user is already enrolled in this group")
)

type (
	Department struct {
		ID           int64  `json:"id"`
		Code         string `json:"code"`
		Name         string `json:"name"`
		Abbreviation string `json:"abbreviation"`
	}

	Discipline struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		DepartmentID int64  `json:"department_id"`
	}

	// Group is a class section of a Discipline users get enrolled in.
	Group struct {
		ID           int64  `json:"id"`
		Code         string `json:"code"`
		Label        string `json:"label"`
		Term         string `json:"term"`
		Schedule     string `json:"schedule"`
		DisciplineID int64  `json:"discipline_id"`
	}

	// Enrollment binds a user.User to a Group. There is at most one per (user, group).
	Enrollment struct {
		ID        int64     `json:"id"`
		UserID    string    `json:"user_id"`
		GroupID   int64     `json:"group_id"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	Repository interface {
		CountDepartments(ctx context.Context) (int, error)
		// FirstDepartment returns the Department with the lowest ID.
		FirstDepartment(ctx context.Context) (Department, error)
		CreateDepartment(ctx context.Context, dep Department) (Department, error)

		CountDisciplines(ctx context.Context) (int, error)
		// FirstDiscipline returns the Discipline with the lowest ID.
		FirstDiscipline(ctx context.Context) (Discipline, error)
		CreateDiscipline(ctx context.Context, disc Discipline) (Discipline, error)

		GetGroupByCode(ctx context.Context, code string) (Group, error)
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)

		GetEnrollment(ctx context.Context, userID string, groupID int64) (Enrollment, error)
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		QueryEnrollments(ctx context.Context, groupID int64) ([]Enrollment, error)
	}
)
