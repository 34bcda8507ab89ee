package roster

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/user"
	testutil "github.com/avalia/avalia/tests"
)

const scenarioA = `[{"code":"X","dicente":[{"nome":"Ana","matricula":"1","email":"a@x.com"}]}]`

func TestImportScenarioA(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	rep, err := env.importer().ImportRaw(ctx, []byte(`[]`), []byte(scenarioA))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Stats.UsersProcessed)
	assert.Equal(t, 1, rep.Stats.UsersCreated)
	assert.Equal(t, 1, rep.Stats.EnrollmentsCreated)
	assert.Empty(t, rep.Stats.Errors)
	assert.Equal(t, 1, rep.Stats.EmailsSent)
	assert.Equal(t, 0, rep.Stats.EmailErrors)
	require.Len(t, rep.EmailDetails, 1)
	assert.Equal(t, EmailSimulated, rep.EmailDetails[0].Status)
	assert.NotEmpty(t, rep.EmailDetails[0].Token)
	assert.Contains(t, rep.EmailDetails[0].ResetLink, "email=a%40x.com")
	require.Len(t, rep.Records, 1)
	assert.Equal(t, OutcomeCreated, rep.Records[0].Outcome)
	assert.True(t, rep.Records[0].Enrolled)

	assert.Equal(t, 1, env.db.Count("users"))
	assert.Equal(t, 1, env.db.Count("enrollments"))
	assert.Equal(t, 1, env.db.Count("departments"))
	assert.Equal(t, 1, env.db.Count("disciplines"))
	assert.Equal(t, 1, env.db.Count("groups"))

	usr, err := env.users.GetUser(ctx, user.GetFilter{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.Equal(t, rep.EmailDetails[0].Token, usr.FirstAccessToken)
	assert.NoError(t, usr.CheckPassword("password"))
}

func TestImportScenarioB(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	imp := env.importer()

	_, err := imp.ImportRaw(ctx, []byte(`[]`), []byte(scenarioA))
	require.NoError(t, err)
	rep, err := imp.ImportRaw(ctx, []byte(`[]`), []byte(scenarioA))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Stats.UsersProcessed)
	assert.Equal(t, 0, rep.Stats.UsersCreated)
	assert.Equal(t, 1, rep.Stats.UsersMatched)
	assert.Equal(t, 0, rep.Stats.EnrollmentsCreated)
	assert.Equal(t, 0, rep.Stats.EmailsSent)
	assert.Empty(t, rep.EmailDetails)
	assert.Equal(t, OutcomeMatched, rep.Records[0].Outcome)

	assert.Equal(t, 1, env.db.Count("users"))
	assert.Equal(t, 1, env.db.Count("enrollments"))
	assert.Equal(t, 1, env.db.Count("groups"))
	assert.Len(t, env.mailer.sent, 1)
}

func TestImportScenarioC(t *testing.T) {
	env := newTestEnv()
	members := `[{"code":"X","dicente":[{"nome":"Bia","matricula":"2"},{"nome":"Ana","matricula":"1","email":"a@x.com"}]}]`

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(members))
	require.NoError(t, err)

	require.Len(t, rep.Stats.Errors, 1)
	assert.Equal(t, "group X, record #1 (matricula 2): email: this field is required", rep.Stats.Errors[0])
	assert.Equal(t, 1, rep.Stats.UsersProcessed)
	assert.Equal(t, OutcomeSkippedInvalid, rep.Records[0].Outcome)
	assert.Equal(t, 1, env.db.Count("users"))
}

func TestImportWrongFieldType(t *testing.T) {
	env := newTestEnv()
	members := `[{"code":"X","dicente":[{"nome":"Ana","matricula":"1","email":"a@x.com"},{"nome":42,"matricula":"2","email":"b@x.com"}]}]`

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(members))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Stats.UsersProcessed)
	assert.Equal(t, 1, rep.Stats.UsersCreated)
	require.Len(t, rep.Stats.Errors, 1)
	assert.Equal(t, "group X, record #2 (b@x.com): nome: must be a string or a number", rep.Stats.Errors[0])
	require.Len(t, rep.Records, 2)
	assert.Equal(t, OutcomeSkippedInvalid, rep.Records[1].Outcome)
	assert.Equal(t, 1, env.db.Count("users"))
	assert.Len(t, rep.EmailDetails, 1)
}

func TestImportScenarioD(t *testing.T) {
	env := newTestEnv()

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(`[{"code":"X",`))
	require.Error(t, err)
	assert.True(t, IsMalformedInput(err))
	assert.Empty(t, rep.Records)
	assert.Nil(t, rep.Stats.Errors)

	for _, table := range []string{"users", "departments", "disciplines", "groups", "enrollments"} {
		assert.Equal(t, 0, env.db.Count(table), table)
	}
}

func TestImportPartialFailureIsolation(t *testing.T) {
	env := newTestEnv()
	members := `[{"code":"X","dicente":[
		{"nome":"A","matricula":"1","email":"a@x.com"},
		{"nome":"B","matricula":"2"},
		{"nome":"C","matricula":"3","email":"c@x.com"},
		{"nome":"D","email":"d@x.com"}
	]},{"code":"Y","dicente":[
		{"nome":"E","matricula":"5","email":"e@x.com"}
	]}]`

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(members))
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Stats.UsersProcessed)
	assert.Equal(t, 3, rep.Stats.UsersCreated)
	assert.Equal(t, 3, rep.Stats.EnrollmentsCreated)
	assert.Len(t, rep.Stats.Errors, 2)
	assert.Contains(t, rep.Stats.Errors[1], "group X, record #4 (d@x.com): matricula")
	assert.Equal(t, 3, env.db.Count("users"))
	assert.Equal(t, 3, env.db.Count("enrollments"))
	assert.True(t, rep.Envelope().Success)
}

func TestImportNotificationExclusivity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	testutil.CreateUser(t, env.users, "Ana", "a@x.com", "1", "S3cure!Pass", user.RoleStudent)
	members := `[{"code":"X","dicente":[
		{"nome":"Ana","matricula":"1","email":"a@x.com"},
		{"nome":"Bia","matricula":"2","email":"b@x.com"}
	]}]`

	rep, err := env.importer().ImportRaw(ctx, []byte(`[]`), []byte(members))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Stats.UsersMatched)
	assert.Equal(t, 2, rep.Stats.EnrollmentsCreated)
	require.Len(t, rep.EmailDetails, 1)
	assert.Equal(t, "b@x.com", rep.EmailDetails[0].Email)
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "b@x.com", env.mailer.sent[0].To[0].Address)

	ana, err := env.users.GetUser(ctx, user.GetFilter{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Empty(t, ana.FirstAccessToken)
}

func TestImportSampleRoster(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	classes, members := env.sampleDocuments(t)

	rep, err := env.importer().ImportRaw(ctx, classes, members)
	require.NoError(t, err)

	// Ana is in both classes: created once, matched once, enrolled once
	assert.Equal(t, 4, rep.Stats.UsersProcessed)
	assert.Equal(t, 3, rep.Stats.UsersCreated)
	assert.Equal(t, 1, rep.Stats.UsersMatched)
	assert.Equal(t, 3, rep.Stats.EnrollmentsCreated)
	assert.Equal(t, 3, rep.Stats.EmailsSent)
	assert.Empty(t, rep.Stats.Errors)
	assert.Empty(t, rep.Stats.Warnings)
	assert.Equal(t, 1, env.db.Count("groups"), "classes are ignored without class sync")
}

func TestImportSyncClassesAndProfessors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.opts.SyncClasses = true
	env.opts.ImportProfessors = true
	classes, members := env.sampleDocuments(t)

	rep, err := env.importer().ImportRaw(ctx, classes, members)
	require.NoError(t, err)

	assert.Empty(t, rep.Stats.Errors)
	assert.Equal(t, 6, rep.Stats.UsersProcessed)
	assert.Equal(t, 5, rep.Stats.UsersCreated)
	assert.Equal(t, 6, rep.Stats.EnrollmentsCreated)
	assert.Equal(t, 3, env.db.Count("groups"))

	grp, err := env.academic.GetGroupByCode(ctx, "CIC0097-TA-2021.2")
	require.NoError(t, err)
	assert.Equal(t, "BANCOS DE DADOS", grp.Label)
	assert.Equal(t, "35T45", grp.Schedule)
	enrs, err := env.academic.QueryEnrollments(ctx, grp.ID)
	require.NoError(t, err)
	assert.Len(t, enrs, 3)

	prof, err := env.users.GetUser(ctx, user.GetFilter{Email: "mholanda@unb.br"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleProfessor, prof.Role)
	assert.Equal(t, "83807519491", prof.RegistrationID)

	t.Run("resync updates classes", func(t *testing.T) {
		var docs []ClassRecord
		require.NoError(t, json.Unmarshal(classes, &docs))
		docs[0].Class.Time = "24M34"
		changed, err := json.Marshal(docs)
		require.NoError(t, err)

		rep, err := env.importer().ImportRaw(ctx, changed, members)
		require.NoError(t, err)
		assert.Equal(t, 0, rep.Stats.UsersCreated)
		assert.Equal(t, 0, rep.Stats.EnrollmentsCreated)

		grp, err := env.academic.GetGroupByCode(ctx, "CIC0097-TA-2021.2")
		require.NoError(t, err)
		assert.Equal(t, "24M34", grp.Schedule)
		assert.Equal(t, 3, env.db.Count("groups"))
	})
}

func TestImportSyncClassesMissingClass(t *testing.T) {
	env := newTestEnv()
	env.opts.SyncClasses = true
	members := `[{"code":"NOPE","classCode":"TA","semester":"2021.2","dicente":[{"nome":"Ana","matricula":"1","email":"a@x.com"}]}]`

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[{"name":"no code"}]`), []byte(members))
	require.NoError(t, err)

	require.Len(t, rep.Stats.Errors, 2)
	assert.Equal(t, "class #1: code: this field is required", rep.Stats.Errors[0])
	assert.Equal(t, `group NOPE, record #1 (a@x.com): no target group "NOPE-TA-2021.2"`, rep.Stats.Errors[1])
	assert.Equal(t, 0, env.db.Count("users"))
}

func TestImportUnknownOccupation(t *testing.T) {
	env := newTestEnv()
	members := `[{"code":"X","dicente":[{"nome":"Ana","matricula":"1","email":"a@x.com","ocupacao":"visitante"}]}]`

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(members))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Stats.UsersCreated)
	require.Len(t, rep.Stats.Warnings, 1)
	assert.Contains(t, rep.Stats.Warnings[0], `"visitante"`)

	// no role is assigned to a matched account
	rep, err = env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(members))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Stats.UsersMatched)
	assert.Empty(t, rep.Stats.Warnings)
}

func TestImportWithoutTargetGroup(t *testing.T) {
	env := newTestEnv()
	env.academic.createGroupErr = errStoreDown

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(scenarioA))
	require.NoError(t, err, "bootstrap failures are not fatal")

	require.Len(t, rep.Stats.Errors, 1)
	assert.Equal(t, `group X, record #1 (a@x.com): no target group "DEFAULT"`, rep.Stats.Errors[0])
	assert.Equal(t, 0, rep.Stats.UsersProcessed)
	assert.Empty(t, rep.EmailDetails)
	assert.Equal(t, 0, env.db.Count("users"))
	assert.Equal(t, 0, env.db.Count("departments"), "bootstrap savepoint rolled back")
}

func TestImportStoreFailureRollsBack(t *testing.T) {
	env := newTestEnv()
	env.academic.createEnrollmentErr = errStoreDown
	members := `[{"code":"X","dicente":[{"nome":"Ana","matricula":"1","email":"a@x.com"},{"nome":"Bia","matricula":"2","email":"b@x.com"}]}]`

	_, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(members))
	require.Error(t, err)
	assert.Contains(t, err.Error(), errStoreDown.Error())
	assert.False(t, IsMalformedInput(err))

	for _, table := range []string{"users", "departments", "disciplines", "groups", "enrollments"} {
		assert.Equal(t, 0, env.db.Count(table), table)
	}
	assert.Empty(t, env.mailer.sent)
}

func TestImportLostRace(t *testing.T) {
	env := newTestEnv()
	testutil.CreateUser(t, env.users, "Ana", "a@x.com", "1", "", user.RoleStudent)
	env.users.blindLookups = true
	members := `[{"code":"X","dicente":[{"nome":"Ana","matricula":"1","email":"a@x.com"}]}]`

	rep, err := env.importer().ImportRaw(context.Background(), []byte(`[]`), []byte(members))
	require.NoError(t, err)

	require.Len(t, rep.Stats.Errors, 1)
	assert.Contains(t, rep.Stats.Errors[0], user.ErrEmailExists.Error())
	assert.Equal(t, OutcomeError, rep.Records[0].Outcome)
	assert.Equal(t, 1, env.db.Count("users"))
	assert.Equal(t, 0, env.db.Count("enrollments"))
}

func TestReportEnvelope(t *testing.T) {
	rep := newReport()
	rep.addRecord(RecordResult{Outcome: OutcomeCreated, Enrolled: true})
	rep.addRecord(RecordResult{Outcome: OutcomeError, Message: "group X, record #2: boom"})
	rep.addEmailDetails([]EmailDetail{{Status: EmailSavedFile}, {Status: EmailError, Error: "boom"}})

	data, err := json.Marshal(rep.Envelope())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"message": "import finished: 1 users processed, 1 errors, 1 emails sent",
		"stats": {
			"users_processed": 1, "users_created": 1, "users_matched": 0, "enrollments_created": 1,
			"errors": ["group X, record #2: boom"], "emails_sent": 1, "email_errors": 1
		},
		"email_details": [
			{"user_id": "", "email": "", "name": "", "status": "saved_to_file"},
			{"user_id": "", "email": "", "name": "", "status": "error", "error": "boom"}
		]
	}`, string(data))

	data, err = json.Marshal(Failure("invalid members document"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": false, "message": "invalid members document"}`, string(data))
}

var _ academic.Repository = (*failingAcademic)(nil)
