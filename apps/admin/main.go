package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/roster"
	"github.com/avalia/avalia/core/user"
	appfs "github.com/avalia/avalia/fs"
	emailsvc "github.com/avalia/avalia/services/email"
	logsvc "github.com/avalia/avalia/services/logger"
	"github.com/avalia/avalia/storage/database"
	sqlxrepos "github.com/avalia/avalia/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, false, logger)

	usrRepo := sqlxrepos.NewUserRepository(db)
	cli := &commandLine{
		conf:    conf,
		db:      db.DB,
		usrRepo: usrRepo,
		importer: roster.NewImporter(roster.Deps{
			Tx:         sqlxrepos.NewTransactor(db),
			Users:      usrRepo,
			Academic:   sqlxrepos.NewAcademicRepository(db),
			Mail:       emailsvc.NewEmailService(conf, logger),
			Validate:   validate,
			Translator: translator,
			Logger:     logger,
		}, roster.OptionsFromConfig(conf)),
	}

	err = newRootCmd(cli).Execute()
	_ = db.Close()
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
