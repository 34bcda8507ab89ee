package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"

	"github.com/avalia/avalia/core"
)

var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// ResetSentMessages clears the messages recorded by the console services.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = make([]core.EmailMessage, 0)
	mu.Unlock()
}

// consoleService prints emails to the std logger instead of delivering them.
type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	logger           core.Logger
	disableOutput    bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) *consoleService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logger,
	}
}

func (svc *consoleService) SendMessage(msg *core.EmailMessage) (core.DeliveryMode, error) {
	if err := prepare(msg); err != nil {
		return core.DeliverySimulated, err
	}

	body := new(strings.Builder)
	if err := writeMIME(body, svc.defaultFromEmail, svc.subjPrefix+msg.Subject, *msg); err != nil {
		return core.DeliverySimulated, err
	}
	if !svc.disableOutput {
		log.Println(body.String())
	}

	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
	return core.DeliverySimulated, nil
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendLogged(msg)
	}
}

func (svc *consoleService) sendLogged(msg *core.EmailMessage) {
	if _, err := svc.SendMessage(msg); err != nil && err != core.ErrEmptyMessage {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
	}
}

type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *consoleServiceMock {
	return &consoleServiceMock{
		consoleService: consoleService{
			defaultFromEmail: conf.DefaultFromEmail(),
			subjPrefix:       "[" + conf.AppName + "] ",
			logger:           logger,
			disableOutput:    true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		// run synchronously
		svc.sendLogged(msg)
	}
}
