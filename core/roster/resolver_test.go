package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalia/avalia/core/user"
	testutil "github.com/avalia/avalia/tests"
)

func newTestResolver(t *testing.T, env *testEnv) *Resolver {
	validate, translator := testutil.NewValidator()
	r, err := NewResolver(env.users, validate, translator, user.RoleStudent, "password")
	require.NoError(t, err)
	return r
}

func TestResolverResolve(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	existing := testutil.CreateUser(t, env.users, "Ana", "ana@x.com", "190084006", "S3cure!Pass", user.RoleStudent)
	r := newTestResolver(t, env)

	tests := []struct {
		name        string
		rec         StudentRecord
		wantKind    ResolutionKind
		wantReason  string
		wantRole    string
		wantWarning bool
	}{
		{name: "missing email", rec: StudentRecord{Name: "X", RegistrationID: "1"}, wantKind: Invalid, wantReason: "email: this field is required"},
		{name: "bad email", rec: StudentRecord{Name: "X", RegistrationID: "1", Email: "nope"}, wantKind: Invalid, wantReason: "email: enter a valid email address"},
		{name: "missing registration", rec: StudentRecord{Name: "X", Email: "x@x.com", RegistrationID: "  "}, wantKind: Invalid, wantReason: "matricula: this field is required"},
		{name: "match by email", rec: StudentRecord{Email: " ANA@x.com ", RegistrationID: "other"}, wantKind: Matched},
		{name: "match by registration", rec: StudentRecord{Email: "ana.clara@x.com", RegistrationID: "190084006"}, wantKind: Matched},
		{name: "create student", rec: StudentRecord{Name: "Caio", Email: "caio@x.com", RegistrationID: "190085312", Occupation: "aluno", Program: "CIC"}, wantKind: Created, wantRole: user.RoleStudent},
		{name: "create professor", rec: StudentRecord{Name: "Genaina", Email: "genaina@x.com", RegistrationID: "2004559", Occupation: "Docente"}, wantKind: Created, wantRole: user.RoleProfessor},
		{
			name: "unreadable field", rec: StudentRecord{Email: "x@x.com", RegistrationID: "1", fault: "nome: must be a string or a number"},
			wantKind: Invalid, wantReason: "nome: must be a string or a number",
		},
		{name: "match with unknown occupation", rec: StudentRecord{Email: "ana@x.com", RegistrationID: "190084006", Occupation: "visitante"}, wantKind: Matched},
		{name: "unknown occupation", rec: StudentRecord{Name: "Vis", Email: "vis@x.com", RegistrationID: "77", Occupation: "visitante"}, wantKind: Created, wantRole: user.RoleStudent, wantWarning: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := r.Resolve(ctx, tc.rec)
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, res.Kind, res.Kind.String())
			assert.Equal(t, tc.wantReason, res.Reason)
			assert.Equal(t, tc.wantWarning, res.Warning != "")

			switch res.Kind {
			case Matched:
				assert.Equal(t, existing.ID, res.User.ID)
			case Created:
				assert.NotEmpty(t, res.User.ID)
				assert.Equal(t, tc.wantRole, res.User.Role)
				assert.True(t, res.User.Active())
				assert.NoError(t, res.User.CheckPassword("password"))
				stored, err := env.users.GetUser(ctx, user.GetFilter{ID: res.User.ID})
				require.NoError(t, err)
				assert.Equal(t, res.User.Email, stored.Email)
			}
		})
	}

	t.Run("lost race", func(t *testing.T) {
		env.users.blindLookups = true
		defer func() { env.users.blindLookups = false }()

		res, err := r.Resolve(ctx, StudentRecord{Name: "Ana", Email: "ana@x.com", RegistrationID: "190084006"})
		require.NoError(t, err)
		assert.Equal(t, Failed, res.Kind)
		assert.Equal(t, user.ErrEmailExists.Error(), res.Reason)
	})

	t.Run("store failure", func(t *testing.T) {
		env.users.createErr = errStoreDown
		defer func() { env.users.createErr = nil }()

		_, err := r.Resolve(ctx, StudentRecord{Name: "Zé", Email: "ze@x.com", RegistrationID: "99"})
		require.Error(t, err)
		assert.False(t, isRecordError(err))
	})
}

func TestNewResolverBadRole(t *testing.T) {
	validate, translator := testutil.NewValidator()
	_, err := NewResolver(newTestEnv().users, validate, translator, "janitor", "password")
	assert.Error(t, err)
}
