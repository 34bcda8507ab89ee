package user

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrRegistrationExists = errors.New("a user with this registration ID already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrRegistrationExists when another User holds those values.
		CheckUniqueness(ctx context.Context, email, registrationID string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo                    Repository
		mailSvc                 core.EmailService
		firstAccessTimeoutDelta time.Duration
		provisionalPassword     string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	secretKey = []byte(conf.SecretKey)
	if conf.PasswordResetTimeoutDelta > 0 {
		passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	}
	return &Service{
		repo:                    repo,
		mailSvc:                 mailSvc,
		firstAccessTimeoutDelta: conf.FirstAccessTimeoutDelta,
		provisionalPassword:     conf.Roster.ProvisionalPassword,
	}
}

// UniquenessError turns ErrEmailExists and ErrRegistrationExists into a *core.ValidationError.
func UniquenessError(err error) error {
	var field string
	switch err {
	case ErrEmailExists:
		field = "email"
	case ErrRegistrationExists:
		field = "registration_id"
	default:
		return err
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *Service) CheckUniqueness(ctx context.Context, email, registrationID string, exclUsers ...User) error {
	return UniquenessError(svc.repo.CheckUniqueness(ctx, email, registrationID, exclUsers...))
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:           nu.Name,
		Email:          nu.Email,
		RegistrationID: nu.RegistrationID,
		Role:           nu.Role,
		Program:        nu.Program,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// GetByEmailOrRegistration finds a User by email or registration ID.
func (svc *Service) GetByEmailOrRegistration(ctx context.Context, login string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{EmailOrRegistration: []string{
		core.CleanString(login, true /* lower */),
		core.CleanString(login),
	}})
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr.UpdatedAt = usr.LastLogin
	return svc.repo.UpdateUser(ctx, usr)
}

// IsProvisionalPassword reports whether pwd is the marker password imported accounts are created with.
func (svc *Service) IsProvisionalPassword(pwd string) bool {
	return svc.provisionalPassword != "" && subtle.ConstantTimeCompare([]byte(pwd), []byte(svc.provisionalPassword)) == 1
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}

	usr.ResetToken = makeToken(usr)
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "storing reset token")
	}
	svc.mailSvc.SendMessages(passwordResetMessage(usr))
	return nil
}

func passwordResetMessage(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name": usr.Name,
			"Path": fmt.Sprintf("/password-reset/%s/%s", EncodeUID(usr), usr.ResetToken),
		},
	}
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidErr := core.NewValidationError(errInvalidToken)

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidErr
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if usr.ResetToken == "" || subtle.ConstantTimeCompare([]byte(usr.ResetToken), []byte(data.Token)) == 0 {
		return invalidErr
	}
	if err = verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.ResetToken = ""
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// ConfirmFirstAccess consumes the first access token of an imported User and sets their password.
func (svc *Service) ConfirmFirstAccess(ctx context.Context, data FirstAccess) (User, error) {
	invalidErr := core.NewValidationError(errInvalidToken)

	usr, err := svc.GetByEmail(ctx, data.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, invalidErr
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if usr.FirstAccessToken == "" || subtle.ConstantTimeCompare([]byte(usr.FirstAccessToken), []byte(data.Token)) == 0 {
		return User{}, invalidErr
	}
	if svc.firstAccessTimeoutDelta > 0 && nowFunc().Sub(usr.FirstAccessIssuedAt) > svc.firstAccessTimeoutDelta {
		return User{}, core.NewValidationError(errTokenExpired)
	}
	if tag := checkPassword(data.Password, usr.Name, usr.Email, usr.RegistrationID); tag == pwdAttrSimTag {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "password", Error: pwdAttrSimText})
	}
	if svc.IsProvisionalPassword(data.Password) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "password", Error: pwdNoCommonText})
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.FirstAccessToken = ""
	usr.FirstAccessIssuedAt = time.Time{}
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}
