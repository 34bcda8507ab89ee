package roster

import (
	"context"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/user"
	testutil "github.com/avalia/avalia/tests"
)

func TestNotifierDispatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		mailer     *fakeMailer
		updateErr  error
		wantStatus EmailStatus
		wantError  string
	}{
		{name: "sent", mailer: &fakeMailer{mode: core.DeliverySent}, wantStatus: EmailSent},
		{name: "saved to file", mailer: &fakeMailer{mode: core.DeliveryFile}, wantStatus: EmailSavedFile},
		{name: "simulated", mailer: &fakeMailer{mode: core.DeliverySimulated}, wantStatus: EmailSimulated},
		{name: "transport error", mailer: &fakeMailer{mode: core.DeliverySent, err: errors.New("sendgrid status: 401")}, wantStatus: EmailError, wantError: "sendgrid status: 401"},
		{name: "transport panic", mailer: &fakeMailer{panics: true}, wantStatus: EmailError, wantError: "email transport panic: smtp: broken pipe"},
		{name: "token not stored", mailer: &fakeMailer{mode: core.DeliverySent}, updateErr: errStoreDown, wantStatus: EmailError, wantError: "storing token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			fresh := testutil.CreateUser(t, env.users, "Ana", "ana@x.com", "1", "password", user.RoleStudent)
			other := testutil.CreateUser(t, env.users, "Caio", "caio@x.com", "2", "password", user.RoleStudent)
			env.users.updateErr = tc.updateErr
			n := NewNotifier(env.users, tc.mailer, testutil.NewLogger(), "password", "http://localhost:3000")

			details := n.Dispatch(ctx, []user.User{fresh, other})
			require.Len(t, details, 2, "one failure must not stop the others")

			d := details[0]
			assert.Equal(t, fresh.ID, d.UserID)
			assert.Equal(t, "ana@x.com", d.Email)
			assert.Equal(t, "Ana", d.Name)
			assert.Equal(t, tc.wantStatus, d.Status)
			if tc.wantError != "" {
				assert.Contains(t, d.Error, tc.wantError)
				assert.Empty(t, d.Token)
				return
			}

			assert.Empty(t, d.Error)
			require.NotEmpty(t, d.Token)
			link, err := url.Parse(d.ResetLink)
			require.NoError(t, err)
			assert.Equal(t, "/first-access", link.Path)
			assert.Equal(t, d.Token, link.Query().Get("token"))
			assert.Equal(t, "ana@x.com", link.Query().Get("email"))

			stored, err := env.users.GetUser(ctx, user.GetFilter{ID: fresh.ID})
			require.NoError(t, err)
			assert.Equal(t, d.Token, stored.FirstAccessToken)
			assert.False(t, stored.FirstAccessIssuedAt.IsZero())

			require.Len(t, tc.mailer.sent, 2)
			msg := tc.mailer.sent[0]
			assert.Equal(t, "ana@x.com", msg.To[0].Address)
			assert.Contains(t, msg.TextContent, d.ResetLink)
			assert.Contains(t, msg.HTMLContent, "first-access")
		})
	}
}

func TestNotifierSkipsRealPasswords(t *testing.T) {
	env := newTestEnv()
	usr := testutil.CreateUser(t, env.users, "Ana", "ana@x.com", "1", "S3cure!Pass", user.RoleStudent)
	n := NewNotifier(env.users, env.mailer, testutil.NewLogger(), "password", "http://localhost:3000")

	details := n.Dispatch(context.Background(), []user.User{usr})
	assert.Empty(t, details)
	assert.Empty(t, env.mailer.sent)
}

func TestNotifierKnownProvisionalHash(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	validate, translator := testutil.NewValidator()
	r, err := NewResolver(env.users, validate, translator, user.RoleStudent, "password")
	require.NoError(t, err)

	res, err := r.Resolve(ctx, StudentRecord{Name: "Ana", Email: "ana@x.com", RegistrationID: "1"})
	require.NoError(t, err)
	require.Equal(t, Created, res.Kind)
	assert.Equal(t, r.pwdHash, res.User.PasswordHash)

	// a notifier with another provisional password only recognizes the user through the shared hash
	n := NewNotifier(env.users, env.mailer, testutil.NewLogger(), "another", "http://localhost:3000")
	assert.Empty(t, n.Dispatch(ctx, []user.User{res.User}))

	details := n.Dispatch(ctx, []user.User{res.User}, r.pwdHash)
	require.Len(t, details, 1)
	assert.Equal(t, EmailSimulated, details[0].Status)

	// unknown hashes fall back to the password comparison
	other := testutil.CreateUser(t, env.users, "Caio", "caio@x.com", "2", "another", user.RoleStudent)
	details = n.Dispatch(ctx, []user.User{other}, r.pwdHash)
	require.Len(t, details, 1)
	assert.Equal(t, other.ID, details[0].UserID)
}
