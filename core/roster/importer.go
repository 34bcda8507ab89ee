package roster

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/user"
)

// Options tune one Importer.
type Options struct {
	TargetGroupCode     string
	DefaultRole         string
	ProvisionalPassword string
	FrontendBaseURL     string
	SyncClasses         bool // apply the classes document and enroll members in their own class
	ImportProfessors    bool // process the docente of every members group
}

func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		TargetGroupCode:     conf.Roster.TargetGroupCode,
		DefaultRole:         conf.Roster.DefaultRole,
		ProvisionalPassword: conf.Roster.ProvisionalPassword,
		FrontendBaseURL:     conf.FrontendBaseURL,
		SyncClasses:         conf.Roster.SyncClasses,
		ImportProfessors:    conf.Roster.ImportProfessors,
	}
}

// Deps are the collaborators of an Importer.
type Deps struct {
	Tx         core.Transactor
	Users      user.Repository
	Academic   academic.Repository
	Mail       core.EmailService
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
}

// Importer runs roster imports.
type Importer struct {
	deps      Deps
	opts      Options
	bootstrap *Bootstrap
	binder    *Binder
	notifier  *Notifier
}

func NewImporter(deps Deps, opts Options) *Importer {
	return &Importer{
		deps:      deps,
		opts:      opts,
		bootstrap: NewBootstrap(deps.Academic, opts.TargetGroupCode),
		binder:    NewBinder(deps.Academic),
		notifier:  NewNotifier(deps.Users, deps.Mail, deps.Logger, opts.ProvisionalPassword, opts.FrontendBaseURL),
	}
}

// isRecordError reports whether err only concerns the record being processed.
func isRecordError(err error) bool {
	switch errors.Cause(err).(type) {
	case *core.ValidationError, validator.ValidationErrors:
		return true
	}
	return false
}

// ImportRaw parses both documents then runs Import. Malformed input aborts before any write.
func (imp *Importer) ImportRaw(ctx context.Context, classes, members []byte) (Report, error) {
	docs, err := ParseDocuments(classes, members)
	if err != nil {
		return Report{}, err
	}
	return imp.Import(ctx, docs)
}

// Import creates or matches the account of every member, enrolls it and emails the new accounts.
// All writes share one transaction; record failures land in the report, any other failure rolls back everything.
func (imp *Importer) Import(ctx context.Context, docs Documents) (Report, error) {
	resolver, err := NewResolver(imp.deps.Users, imp.deps.Validate, imp.deps.Translator, imp.opts.DefaultRole, imp.opts.ProvisionalPassword)
	if err != nil {
		return Report{}, err
	}

	var (
		rep     Report
		created []user.User
	)
	err = imp.deps.Tx.InTx(ctx, func(ctx context.Context) error {
		rep = newReport()
		created = nil
		run := &importRun{Importer: imp, resolver: resolver, report: &rep, seen: make(map[string]bool)}
		if err := run.execute(ctx, docs); err != nil {
			return err
		}
		created = run.created
		return nil
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "importing roster")
	}

	rep.addEmailDetails(imp.notifier.Dispatch(ctx, created, resolver.pwdHash))
	imp.deps.Logger.Info(fmt.Sprintf("roster: import done, %d processed, %d created, %d errors, %d emails sent",
		rep.Stats.UsersProcessed, rep.Stats.UsersCreated, len(rep.Stats.Errors), rep.Stats.EmailsSent))
	return rep, nil
}

// importRun is the state of one Import call.
type importRun struct {
	*Importer
	resolver *Resolver
	report   *Report
	target   *academic.Group
	groups   map[string]*academic.Group // by code, nil when missing
	created  []user.User
	seen     map[string]bool // created user IDs
}

func (run *importRun) execute(ctx context.Context, docs Documents) error {
	skel := run.ensureSkeleton(ctx)
	run.groups = make(map[string]*academic.Group)

	if run.opts.SyncClasses {
		if err := run.syncClasses(ctx, docs.Classes, skel); err != nil {
			return err
		}
	} else if len(docs.Classes) > 0 {
		run.deps.Logger.Debug(fmt.Sprintf("roster: %d classes ignored, class sync is off", len(docs.Classes)))
	}

	for _, mg := range docs.Members {
		grp, code, err := run.groupFor(ctx, mg)
		if err != nil {
			return err
		}

		records := mg.Students
		if run.opts.ImportProfessors && mg.Professor != nil {
			prof := *mg.Professor
			if prof.RegistrationID == "" {
				prof.RegistrationID = prof.Username
			}
			records = append(records[:len(records):len(records)], prof)
		}
		for i, rec := range records {
			if err := run.processRecord(ctx, mg.Code, i+1, rec, grp, code); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureSkeleton runs the bootstrap under a savepoint. Failures are logged only.
func (run *importRun) ensureSkeleton(ctx context.Context) Skeleton {
	var skel Skeleton
	err := run.deps.Tx.Savepoint(ctx, "roster_bootstrap", func(ctx context.Context) error {
		var err error
		skel, err = run.bootstrap.Ensure(ctx)
		return err
	})
	if err != nil {
		run.deps.Logger.Error(fmt.Sprintf("roster: bootstrap: %v", err), err)
		return Skeleton{}
	}
	if len(skel.Created) > 0 {
		run.deps.Logger.Info(fmt.Sprintf("roster: bootstrap created %v", skel.Created))
	}
	grp := skel.Group
	run.target = &grp
	return skel
}

func (run *importRun) syncClasses(ctx context.Context, classes []ClassRecord, skel Skeleton) error {
	for i, cls := range classes {
		code := ClassKey(cls.Code, cls.Class.ClassCode, cls.Class.Semester)
		if cls.Code == "" {
			run.report.addError(fmt.Sprintf("class #%d: code: %s", i+1, "this field is required"))
			continue
		}

		var grp academic.Group
		err := run.deps.Tx.Savepoint(ctx, "roster_class", func(ctx context.Context) error {
			existing, err := run.deps.Academic.GetGroupByCode(ctx, code)
			switch {
			case err == nil:
				existing.Label = cls.Name
				existing.Term = cls.Class.Semester
				existing.Schedule = cls.Class.Time
				grp, err = run.deps.Academic.UpdateGroup(ctx, existing)
				return err
			case errors.Is(err, academic.ErrNotFound):
				if skel.DisciplineID == 0 {
					return core.NewValidationError(errors.New("no discipline to attach the class to"))
				}
				grp, err = run.deps.Academic.CreateGroup(ctx, academic.Group{
					Code:         code,
					Label:        cls.Name,
					Term:         cls.Class.Semester,
					Schedule:     cls.Class.Time,
					DisciplineID: skel.DisciplineID,
				})
				return err
			default:
				return errors.Wrap(err, "finding class group")
			}
		})
		if err != nil {
			if !isRecordError(err) {
				return err
			}
			run.report.addError(fmt.Sprintf("class %s: %v", code, err))
			continue
		}
		run.groups[code] = &grp
	}
	return nil
}

// groupFor picks the group the members of mg are enrolled in, and its code.
func (run *importRun) groupFor(ctx context.Context, mg MemberGroup) (*academic.Group, string, error) {
	if !run.opts.SyncClasses {
		return run.target, run.opts.TargetGroupCode, nil
	}

	code := ClassKey(mg.Code, mg.ClassCode, mg.Semester)
	if grp, ok := run.groups[code]; ok {
		return grp, code, nil
	}
	grp, err := run.deps.Academic.GetGroupByCode(ctx, code)
	switch {
	case err == nil:
		run.groups[code] = &grp
		return &grp, code, nil
	case errors.Is(err, academic.ErrNotFound):
		run.groups[code] = nil
		return nil, code, nil
	}
	return nil, code, errors.Wrap(err, "finding class group")
}

// processRecord resolves and enrolls one record under its own savepoint.
func (run *importRun) processRecord(ctx context.Context, groupCode string, idx int, rec StudentRecord, grp *academic.Group, targetCode string) error {
	result := RecordResult{
		GroupCode:      groupCode,
		Index:          idx,
		Email:          core.CleanString(rec.Email, true /* lower */),
		RegistrationID: core.CleanString(rec.RegistrationID),
	}

	var res Resolution
	err := run.deps.Tx.Savepoint(ctx, "roster_record", func(ctx context.Context) error {
		var err error
		if res, err = run.resolver.Resolve(ctx, rec); err != nil {
			return err
		}
		switch res.Kind {
		case Invalid:
			return nil
		case Failed:
			return core.NewValidationError(errors.New(res.Reason))
		}

		if grp == nil {
			return core.NewValidationError(errors.Errorf("no target group %q", targetCode))
		}
		result.Enrolled, err = run.binder.Bind(ctx, res.User, *grp)
		return err
	})

	if res.Warning != "" {
		run.report.addWarning(res.Warning)
	}
	switch {
	case err != nil && !isRecordError(err):
		return err
	case err != nil:
		result.Outcome = OutcomeError
		result.Enrolled = false
		result.Message = recordLabel(groupCode, idx, rec) + ": " + err.Error()
	case res.Kind == Invalid:
		result.Outcome = OutcomeSkippedInvalid
		result.Message = recordLabel(groupCode, idx, rec) + ": " + res.Reason
	case res.Kind == Created:
		result.Outcome = OutcomeCreated
		result.UserID = res.User.ID
		if !run.seen[res.User.ID] {
			run.seen[res.User.ID] = true
			run.created = append(run.created, res.User)
		}
	default:
		result.Outcome = OutcomeMatched
		result.UserID = res.User.ID
	}
	run.report.addRecord(result)
	return nil
}

// recordLabel identifies a record in error messages, by email when it has one.
func recordLabel(groupCode string, idx int, rec StudentRecord) string {
	label := fmt.Sprintf("group %s, record #%d", groupCode, idx)
	if email := core.CleanString(rec.Email); email != "" {
		return label + " (" + email + ")"
	}
	if reg := core.CleanString(rec.RegistrationID); reg != "" {
		return label + " (matricula " + reg + ")"
	}
	return label
}
