package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/avalia/avalia/core/academic"
)

var (
	defaultDepartment = academic.Department{Code: "DEFAULT", Name: "Default Department", Abbreviation: "DEF"}
	defaultDiscipline = academic.Discipline{Name: "Default Discipline"}
)

// Skeleton is the minimal organization an enrollment needs.
type Skeleton struct {
	DepartmentID int64
	DisciplineID int64
	Group        academic.Group

	// Created lists the kinds of entities Ensure had to create ("department", "discipline", "group").
	Created []string
}

// Bootstrap makes sure the target group, and the department & discipline above it, exist.
type Bootstrap struct {
	repo      academic.Repository
	groupCode string
	nowFunc   func() time.Time
}

func NewBootstrap(repo academic.Repository, groupCode string) *Bootstrap {
	return &Bootstrap{repo: repo, groupCode: groupCode, nowFunc: time.Now}
}

// Ensure is a no-op when the target group exists. Otherwise it creates the missing pieces only.
func (b *Bootstrap) Ensure(ctx context.Context) (Skeleton, error) {
	var skel Skeleton

	grp, err := b.repo.GetGroupByCode(ctx, b.groupCode)
	if err == nil {
		skel.Group = grp
		skel.DisciplineID = grp.DisciplineID
		return skel, nil
	}
	if !errors.Is(err, academic.ErrNotFound) {
		return skel, errors.Wrap(err, "finding target group")
	}

	dep, created, err := b.ensureDepartment(ctx)
	if err != nil {
		return skel, err
	}
	skel.DepartmentID = dep.ID
	if created {
		skel.Created = append(skel.Created, "department")
	}

	disc, created, err := b.ensureDiscipline(ctx, dep)
	if err != nil {
		return skel, err
	}
	skel.DisciplineID = disc.ID
	if created {
		skel.Created = append(skel.Created, "discipline")
	}

	grp, err = b.repo.CreateGroup(ctx, academic.Group{
		Code:         b.groupCode,
		Label:        "Default Group",
		Term:         term(b.nowFunc()),
		DisciplineID: disc.ID,
	})
	if err != nil {
		return skel, errors.Wrap(err, "creating target group")
	}
	skel.Group = grp
	skel.Created = append(skel.Created, "group")
	return skel, nil
}

func (b *Bootstrap) ensureDepartment(ctx context.Context) (academic.Department, bool, error) {
	n, err := b.repo.CountDepartments(ctx)
	if err != nil {
		return academic.Department{}, false, errors.Wrap(err, "counting departments")
	}
	if n > 0 {
		dep, err := b.repo.FirstDepartment(ctx)
		return dep, false, errors.Wrap(err, "finding department")
	}
	dep, err := b.repo.CreateDepartment(ctx, defaultDepartment)
	return dep, true, errors.Wrap(err, "creating department")
}

func (b *Bootstrap) ensureDiscipline(ctx context.Context, dep academic.Department) (academic.Discipline, bool, error) {
	n, err := b.repo.CountDisciplines(ctx)
	if err != nil {
		return academic.Discipline{}, false, errors.Wrap(err, "counting disciplines")
	}
	if n > 0 {
		disc, err := b.repo.FirstDiscipline(ctx)
		return disc, false, errors.Wrap(err, "finding discipline")
	}
	disc := defaultDiscipline
	disc.DepartmentID = dep.ID
	disc, err = b.repo.CreateDiscipline(ctx, disc)
	return disc, true, errors.Wrap(err, "creating discipline")
}

// term is the academic term of t, e.g. "2021.2".
func term(t time.Time) string {
	half := 1
	if t.Month() > time.June {
		half = 2
	}
	return fmt.Sprintf("%d.%d", t.Year(), half)
}
