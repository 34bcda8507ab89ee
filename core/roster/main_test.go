package roster

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/user"
	appfs "github.com/avalia/avalia/fs"
	inmemdb "github.com/avalia/avalia/storage/database/inmem"
	testutil "github.com/avalia/avalia/tests"
)

var errStoreDown = errors.New("connection reset by peer")

func TestMain(m *testing.M) {
	conf := testutil.Config()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, true, testutil.NewLogger())
	os.Exit(m.Run())
}

// fakeMailer records messages and answers with a fixed delivery mode.
type fakeMailer struct {
	mu     sync.Mutex
	mode   core.DeliveryMode
	err    error
	panics bool
	sent   []core.EmailMessage
}

func (m *fakeMailer) SendMessage(msg *core.EmailMessage) (core.DeliveryMode, error) {
	if m.panics {
		panic("smtp: broken pipe")
	}
	if err := msg.Render(); err != nil {
		return m.mode, err
	}
	if m.err != nil {
		return m.mode, m.err
	}
	m.mu.Lock()
	m.sent = append(m.sent, *msg)
	m.mu.Unlock()
	return m.mode, nil
}

func (m *fakeMailer) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_, _ = m.SendMessage(msg)
	}
}

// failingUsers breaks chosen calls of a user.Repository.
type failingUsers struct {
	user.Repository
	blindLookups bool // GetUser never finds anyone
	createErr    error
	updateErr    error
}

func (r *failingUsers) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	if r.blindLookups {
		return user.User{}, user.ErrNotFound
	}
	return r.Repository.GetUser(ctx, filter)
}

func (r *failingUsers) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if r.createErr != nil {
		return user.User{}, r.createErr
	}
	return r.Repository.CreateUser(ctx, usr)
}

func (r *failingUsers) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if r.updateErr != nil {
		return user.User{}, r.updateErr
	}
	return r.Repository.UpdateUser(ctx, usr)
}

// failingAcademic breaks chosen calls of an academic.Repository.
type failingAcademic struct {
	academic.Repository
	createGroupErr      error
	createEnrollmentErr error
}

func (r *failingAcademic) CreateGroup(ctx context.Context, grp academic.Group) (academic.Group, error) {
	if r.createGroupErr != nil {
		return academic.Group{}, r.createGroupErr
	}
	return r.Repository.CreateGroup(ctx, grp)
}

func (r *failingAcademic) CreateEnrollment(ctx context.Context, enr academic.Enrollment) (academic.Enrollment, error) {
	if r.createEnrollmentErr != nil {
		return academic.Enrollment{}, r.createEnrollmentErr
	}
	return r.Repository.CreateEnrollment(ctx, enr)
}

type testEnv struct {
	db       *inmemdb.DB
	users    *failingUsers
	academic *failingAcademic
	mailer   *fakeMailer
	opts     Options
}

func newTestEnv() *testEnv {
	db := inmemdb.Open()
	return &testEnv{
		db:       db,
		users:    &failingUsers{Repository: inmemdb.NewUserRepository(db)},
		academic: &failingAcademic{Repository: inmemdb.NewAcademicRepository(db)},
		mailer:   &fakeMailer{mode: core.DeliverySimulated},
		opts:     OptionsFromConfig(testutil.Config()),
	}
}

func (env *testEnv) importer() *Importer {
	validate, translator := testutil.NewValidator()
	return NewImporter(Deps{
		Tx:         env.db,
		Users:      env.users,
		Academic:   env.academic,
		Mail:       env.mailer,
		Validate:   validate,
		Translator: translator,
		Logger:     testutil.NewLogger(),
	}, env.opts)
}

func (env *testEnv) sampleDocuments(t *testing.T) (classes, members []byte) {
	var err error
	if classes, err = appfs.FS.ReadFile(appfs.SampleClasses); err != nil {
		t.Fatalf("reading sample classes: %v", err)
	}
	if members, err = appfs.FS.ReadFile(appfs.SampleMembers); err != nil {
		t.Fatalf("reading sample members: %v", err)
	}
	return classes, members
}
