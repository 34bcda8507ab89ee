package roster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/user"
	testutil "github.com/avalia/avalia/tests"
)

func TestBootstrapEnsure(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		seed        func(t *testing.T, repo academic.Repository)
		wantCreated []string
	}{
		{
			name:        "empty store",
			wantCreated: []string{"department", "discipline", "group"},
		},
		{
			name: "department exists",
			seed: func(t *testing.T, repo academic.Repository) {
				_, err := repo.CreateDepartment(ctx, academic.Department{Code: "CIC", Name: "Computer Science", Abbreviation: "CIC"})
				require.NoError(t, err)
			},
			wantCreated: []string{"discipline", "group"},
		},
		{
			name: "department and discipline exist",
			seed: func(t *testing.T, repo academic.Repository) {
				dep, err := repo.CreateDepartment(ctx, academic.Department{Code: "CIC", Name: "Computer Science"})
				require.NoError(t, err)
				_, err = repo.CreateDiscipline(ctx, academic.Discipline{Name: "Databases", DepartmentID: dep.ID})
				require.NoError(t, err)
			},
			wantCreated: []string{"group"},
		},
		{
			name: "skeleton exists",
			seed: func(t *testing.T, repo academic.Repository) {
				dep, err := repo.CreateDepartment(ctx, academic.Department{Code: "CIC", Name: "Computer Science"})
				require.NoError(t, err)
				disc, err := repo.CreateDiscipline(ctx, academic.Discipline{Name: "Databases", DepartmentID: dep.ID})
				require.NoError(t, err)
				_, err = repo.CreateGroup(ctx, academic.Group{Code: "DEFAULT", Label: "Existing", DisciplineID: disc.ID})
				require.NoError(t, err)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			if tc.seed != nil {
				tc.seed(t, env.academic)
			}
			boot := NewBootstrap(env.academic, "DEFAULT")
			boot.nowFunc = func() time.Time { return time.Date(2021, time.September, 1, 0, 0, 0, 0, time.UTC) }

			skel, err := boot.Ensure(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCreated, skel.Created)
			assert.Equal(t, "DEFAULT", skel.Group.Code)
			assert.Equal(t, skel.DisciplineID, skel.Group.DisciplineID)
			assert.Equal(t, 1, env.db.Count("departments"))
			assert.Equal(t, 1, env.db.Count("disciplines"))
			assert.Equal(t, 1, env.db.Count("groups"))
			if len(tc.wantCreated) == 3 {
				assert.Equal(t, "2021.2", skel.Group.Term)
			}

			// a second run never creates anything
			skel, err = boot.Ensure(ctx)
			require.NoError(t, err)
			assert.Empty(t, skel.Created)
			assert.Equal(t, 1, env.db.Count("groups"))
		})
	}
}

func TestBootstrapEnsureFailure(t *testing.T) {
	env := newTestEnv()
	env.academic.createGroupErr = errStoreDown

	_, err := NewBootstrap(env.academic, "DEFAULT").Ensure(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating target group")
}

func TestBinderBind(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	skel, err := NewBootstrap(env.academic, "DEFAULT").Ensure(ctx)
	require.NoError(t, err)
	usr := testutil.CreateUser(t, env.users, "Ana", "ana@x.com", "1", "", user.RoleStudent)
	binder := NewBinder(env.academic)

	created, err := binder.Bind(ctx, usr, skel.Group)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = binder.Bind(ctx, usr, skel.Group)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, env.db.Count("enrollments"))

	t.Run("constraint violation", func(t *testing.T) {
		_, err := binder.Bind(ctx, user.User{ID: "unknown"}, skel.Group)
		assert.True(t, isRecordError(err))
	})

	t.Run("store failure", func(t *testing.T) {
		env.academic.createEnrollmentErr = errStoreDown
		defer func() { env.academic.createEnrollmentErr = nil }()
		other := testutil.CreateUser(t, env.users, "Caio", "caio@x.com", "2", "", user.RoleStudent)

		_, err := binder.Bind(ctx, other, skel.Group)
		require.Error(t, err)
		assert.False(t, isRecordError(err))
	})
}
