package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		WorkDir                   string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		FirstAccessTimeoutDelta   time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
		Roster   RosterConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	EmailConfig struct {
		Backend          string // sendgrid | file | console
		SendgridAPIKey   string
		FileDir          string
		DefaultFromName  string
		DefaultFromEmail string
	}

	// RosterConfig drives roster imports.
	RosterConfig struct {
		TargetGroupCode     string
		DefaultRole         string
		ProvisionalPassword string
		SyncClasses         bool
		ImportProfessors    bool
		SourceDir           string
	}
)

const (
	EmailBackendSendgrid = "sendgrid"
	EmailBackendFile     = "file"
	EmailBackendConsole  = "console"
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.Email.DefaultFromName, Address: c.Email.DefaultFromEmail}
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` and environment variables
// prefixed by the current env (e.g. DEV_SECRETKEY).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Avalia")
	v.SetDefault("secretKey", "k3@r!a-vd0n^5b+w$72lq=z1u#e8yx(4pmt%c)9o&h_ig6fs")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("firstAccessTimeoutDelta", 7*24*time.Hour)

	v.SetDefault("serverHost", "0.0.0.0")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverReadTimeout", 5*time.Second)
	v.SetDefault("serverWriteTimeout", 30*time.Second)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "avalia")
	v.SetDefault("dbUser", "avalia")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("emailBackend", EmailBackendConsole)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("emailFileDir", filepath.Join(os.TempDir(), "avalia-mails"))
	v.SetDefault("defaultFromName", "Avalia")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("rosterTargetGroupCode", "DEFAULT")
	v.SetDefault("rosterDefaultRole", "student")
	v.SetDefault("rosterProvisionalPassword", "password")
	v.SetDefault("rosterSyncClasses", false)
	v.SetDefault("rosterImportProfessors", false)
	v.SetDefault("rosterSourceDir", filepath.Join("assets", "roster"))

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		WorkDir:                   wd,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		FirstAccessTimeoutDelta:   v.GetDuration("firstAccessTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetString("serverPort"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ReadTimeout:               v.GetDuration("serverReadTimeout"),
			WriteTimeout:              v.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Email: EmailConfig{
			Backend:          strings.ToLower(v.GetString("emailBackend")),
			SendgridAPIKey:   v.GetString("sendgridApiKey"),
			FileDir:          v.GetString("emailFileDir"),
			DefaultFromName:  v.GetString("defaultFromName"),
			DefaultFromEmail: v.GetString("defaultFromEmail"),
		},
		Roster: RosterConfig{
			TargetGroupCode:     v.GetString("rosterTargetGroupCode"),
			DefaultRole:         strings.ToLower(v.GetString("rosterDefaultRole")),
			ProvisionalPassword: v.GetString("rosterProvisionalPassword"),
			SyncClasses:         v.GetBool("rosterSyncClasses"),
			ImportProfessors:    v.GetBool("rosterImportProfessors"),
			SourceDir:           v.GetString("rosterSourceDir"),
		},
	}
}
