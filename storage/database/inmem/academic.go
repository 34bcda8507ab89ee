package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

func firstID(ids []int64) int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0]
}

func (repo *academicRepository) CountDepartments(_ context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.departments), nil
}

func (repo *academicRepository) FirstDepartment(_ context.Context) (academic.Department, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if len(repo.db.departments) == 0 {
		return academic.Department{}, academic.ErrNotFound
	}
	ids := make([]int64, 0, len(repo.db.departments))
	for id := range repo.db.departments {
		ids = append(ids, id)
	}
	return repo.db.departments[firstID(ids)], nil
}

func (repo *academicRepository) CreateDepartment(_ context.Context, dep academic.Department) (academic.Department, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, d := range repo.db.departments {
		if d.Code == dep.Code {
			return academic.Department{}, core.NewValidationError(nil, core.FieldError{Field: "code", Error: "a department with this code already exists"})
		}
	}
	dep.ID = repo.db.nextID()
	repo.db.departments[dep.ID] = dep
	return dep, nil
}

func (repo *academicRepository) CountDisciplines(_ context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.disciplines), nil
}

func (repo *academicRepository) FirstDiscipline(_ context.Context) (academic.Discipline, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if len(repo.db.disciplines) == 0 {
		return academic.Discipline{}, academic.ErrNotFound
	}
	ids := make([]int64, 0, len(repo.db.disciplines))
	for id := range repo.db.disciplines {
		ids = append(ids, id)
	}
	return repo.db.disciplines[firstID(ids)], nil
}

func (repo *academicRepository) CreateDiscipline(_ context.Context, disc academic.Discipline) (academic.Discipline, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.departments[disc.DepartmentID]; !ok {
		return academic.Discipline{}, core.NewValidationError(nil, core.FieldError{Field: "department_id", Error: "department does not exist"})
	}
	disc.ID = repo.db.nextID()
	repo.db.disciplines[disc.ID] = disc
	return disc, nil
}

func (repo *academicRepository) GetGroupByCode(_ context.Context, code string) (academic.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, grp := range repo.db.groups {
		if grp.Code == code {
			return grp, nil
		}
	}
	return academic.Group{}, academic.ErrNotFound
}

// checkGroup must be called with the lock held.
func (repo *academicRepository) checkGroup(grp academic.Group) error {
	if _, ok := repo.db.disciplines[grp.DisciplineID]; !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "discipline_id", Error: "discipline does not exist"})
	}
	for _, g := range repo.db.groups {
		if g.Code == grp.Code && g.ID != grp.ID {
			return core.NewValidationError(academic.ErrGroupExists, core.FieldError{Field: "code", Error: academic.ErrGroupExists.Error()})
		}
	}
	return nil
}

func (repo *academicRepository) CreateGroup(_ context.Context, grp academic.Group) (academic.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkGroup(grp); err != nil {
		return academic.Group{}, err
	}
	grp.ID = repo.db.nextID()
	repo.db.groups[grp.ID] = grp
	return grp, nil
}

func (repo *academicRepository) UpdateGroup(_ context.Context, grp academic.Group) (academic.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[grp.ID]; !ok {
		return academic.Group{}, academic.ErrNotFound
	}
	if err := repo.checkGroup(grp); err != nil {
		return academic.Group{}, err
	}
	repo.db.groups[grp.ID] = grp
	return grp, nil
}

func (repo *academicRepository) GetEnrollment(_ context.Context, userID string, groupID int64) (academic.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.GroupID == groupID {
			return enr, nil
		}
	}
	return academic.Enrollment{}, academic.ErrNotFound
}

func (repo *academicRepository) CreateEnrollment(_ context.Context, enr academic.Enrollment) (academic.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[enr.UserID]; !ok {
		return academic.Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "user does not exist"})
	}
	if _, ok := repo.db.groups[enr.GroupID]; !ok {
		return academic.Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "group_id", Error: "group does not exist"})
	}
	for _, e := range repo.db.enrollments {
		if e.UserID == enr.UserID && e.GroupID == enr.GroupID {
			return academic.Enrollment{}, core.NewValidationError(academic.ErrEnrollmentExists)
		}
	}
	if enr.CreatedAt.IsZero() {
		enr.CreatedAt = time.Now().UTC()
	}
	enr.ID = repo.db.nextID()
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *academicRepository) QueryEnrollments(_ context.Context, groupID int64) ([]academic.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrs := make([]academic.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.GroupID == groupID {
			enrs = append(enrs, enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].ID < enrs[j].ID })
	return enrs, nil
}
