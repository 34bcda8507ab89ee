package emailsvc

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
)

var (
	fileSeq    uint64
	createFile = func(name string) (io.WriteCloser, error) { return os.Create(name) } // mockable
)

// fileService writes every message as an .eml file under dir.
type fileService struct {
	dir              string
	defaultFromEmail mail.Address
	subjPrefix       string
	logger           core.Logger
}

var _ core.EmailService = (*fileService)(nil)

func NewFileService(conf *core.Config, logger core.Logger) *fileService {
	return &fileService{
		dir:              conf.Email.FileDir,
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logger,
	}
}

func (svc *fileService) SendMessage(msg *core.EmailMessage) (core.DeliveryMode, error) {
	if err := prepare(msg); err != nil {
		return core.DeliveryFile, err
	}
	if err := os.MkdirAll(svc.dir, 0o755); err != nil {
		return core.DeliveryFile, errors.Wrap(err, "creating email dir")
	}

	name := fmt.Sprintf("%s-%04d.eml", time.Now().UTC().Format("20060102T150405"), atomic.AddUint64(&fileSeq, 1))
	f, err := createFile(filepath.Join(svc.dir, name))
	if err != nil {
		return core.DeliveryFile, errors.Wrap(err, "creating email file")
	}
	if err = writeMIME(f, svc.defaultFromEmail, svc.subjPrefix+msg.Subject, *msg); err != nil {
		_ = f.Close()
		return core.DeliveryFile, err
	}
	if err = f.Close(); err != nil {
		return core.DeliveryFile, errors.Wrap(err, "closing email file")
	}
	return core.DeliveryFile, nil
}

func (svc *fileService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if _, err := svc.SendMessage(msg); err != nil && err != core.ErrEmptyMessage {
				svc.logger.Error(fmt.Sprintf("saving email: %v", err), err)
			}
		}()
	}
}

// NewEmailService picks the delivery backend configured in conf.Email.Backend.
func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	switch conf.Email.Backend {
	case core.EmailBackendSendgrid:
		if conf.Email.SendgridAPIKey != "" {
			return NewSendgridService(conf, logger)
		}
		logger.Warn("sendgrid backend selected without an API key; falling back to console")
	case core.EmailBackendFile:
		return NewFileService(conf, logger)
	}
	return NewConsoleService(conf, logger)
}
