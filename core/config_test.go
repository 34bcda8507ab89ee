package core

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENV", "")
		conf := NewConfig()

		assert.Equal(t, "DEV", conf.Env)
		assert.True(t, conf.Debug)
		assert.False(t, conf.TestMode)
		assert.Equal(t, "0.0.0.0:8000", conf.Server.Address())
		assert.Equal(t, "localhost:5432", conf.Database.Address())
		assert.Equal(t, EmailBackendConsole, conf.Email.Backend)
		assert.Equal(t, 7*24*time.Hour, conf.FirstAccessTimeoutDelta)
		assert.Equal(t, RosterConfig{
			TargetGroupCode:     "DEFAULT",
			DefaultRole:         "student",
			ProvisionalPassword: "password",
			SourceDir:           filepath.Join("assets", "roster"),
		}, conf.Roster)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("TEST_FRONTENDBASEURL", "https://avalia.test/")
		t.Setenv("TEST_ROSTERTARGETGROUPCODE", "CIC0097-TA")
		t.Setenv("TEST_ROSTERDEFAULTROLE", "Professor")
		t.Setenv("TEST_ROSTERSYNCCLASSES", "true")
		t.Setenv("TEST_FIRSTACCESSTIMEOUTDELTA", "48h")
		t.Setenv("TEST_EMAILBACKEND", "FILE")
		conf := NewConfig()

		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.Equal(t, "https://avalia.test", conf.FrontendBaseURL)
		assert.Equal(t, "CIC0097-TA", conf.Roster.TargetGroupCode)
		assert.Equal(t, "professor", conf.Roster.DefaultRole)
		assert.True(t, conf.Roster.SyncClasses)
		assert.Equal(t, 48*time.Hour, conf.FirstAccessTimeoutDelta)
		assert.Equal(t, EmailBackendFile, conf.Email.Backend)
		assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail().Address)
	})
}
