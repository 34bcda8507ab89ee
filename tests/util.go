package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/user"
	logsvc "github.com/avalia/avalia/services/logger"
)

// Config returns the configuration tests run with.
func Config() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Avalia",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		FirstAccessTimeoutDelta:   7 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Email: core.EmailConfig{
			Backend:          core.EmailBackendConsole,
			DefaultFromName:  "Avalia",
			DefaultFromEmail: "noreply@avalia.test",
		},
		Roster: core.RosterConfig{
			TargetGroupCode:     "DEFAULT",
			DefaultRole:         user.RoleStudent,
			ProvisionalPassword: "password",
		},
	}
}

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), Config())
}

// NewValidator returns a validator set up like the app's.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, registrationID, pwd, role string,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:           name,
		Email:          email,
		RegistrationID: registrationID,
		Role:           role,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	usr.SetActive(true)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
