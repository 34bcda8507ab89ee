package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}

// checkUniqueness must be called with the lock held.
func (repo *userRepository) checkUniqueness(email, registrationID string, excludedUsers ...user.User) error {
	for _, usr := range repo.db.users {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
		if registrationID != "" && usr.RegistrationID == registrationID {
			return user.ErrRegistrationExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, email, registrationID string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(email, registrationID, excludedUsers...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// mirror the unique constraints of the SQL schema
	if err := repo.checkUniqueness(usr.Email, usr.RegistrationID); err != nil {
		return user.User{}, user.UniquenessError(err)
	}
	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.query() {
			if usr.Email == core.CleanString(filter.Email, true /* lower */) {
				return usr, nil
			}
		}
	case filter.RegistrationID != "":
		for _, usr := range repo.query() {
			if usr.RegistrationID == core.CleanString(filter.RegistrationID) {
				return usr, nil
			}
		}
	case len(filter.EmailOrRegistration) > 0:
		for _, usr := range repo.query() {
			for _, val := range filter.EmailOrRegistration {
				if val != "" && (usr.Email == val || usr.RegistrationID == val) {
					return usr, nil
				}
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Email, usr.RegistrationID, usr); err != nil {
		return user.User{}, user.UniquenessError(err)
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}
