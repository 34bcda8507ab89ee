package roster

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/user"
)

const firstAccessTemplate = "first_access"

// Notifier sends the first access email to freshly imported accounts.
type Notifier struct {
	users               user.Repository
	mailSvc             core.EmailService
	logger              core.Logger
	provisionalPassword string
	frontendBaseURL     string
	nowFunc             func() time.Time
}

func NewNotifier(users user.Repository, mailSvc core.EmailService, logger core.Logger, provisionalPassword, frontendBaseURL string) *Notifier {
	return &Notifier{
		users:               users,
		mailSvc:             mailSvc,
		logger:              logger,
		provisionalPassword: provisionalPassword,
		frontendBaseURL:     frontendBaseURL,
		nowFunc:             time.Now,
	}
}

// FirstAccessLink is the frontend page where usr picks a password with token.
func FirstAccessLink(baseURL, token, email string) string {
	q := make(url.Values)
	q.Set("token", token)
	q.Set("email", email)
	return baseURL + "/first-access?" + q.Encode()
}

// Dispatch issues a first access token to every user still holding the provisional password,
// emails it and reports one EmailDetail per notified user. It never fails as a whole.
// provisionalHashes are hashes of the provisional password already known to the caller;
// a user holding one of them skips the bcrypt comparison.
func (n *Notifier) Dispatch(ctx context.Context, users []user.User, provisionalHashes ...[]byte) []EmailDetail {
	details := make([]EmailDetail, 0, len(users))
	for _, usr := range users {
		if !n.holdsProvisionalPassword(usr, provisionalHashes) {
			n.logger.Debug(fmt.Sprintf("roster: %s has a password already, no first access email", usr.Email))
			continue
		}
		details = append(details, n.notify(ctx, usr))
	}
	return details
}

func (n *Notifier) holdsProvisionalPassword(usr user.User, hashes [][]byte) bool {
	for _, h := range hashes {
		if len(h) > 0 && bytes.Equal(usr.PasswordHash, h) {
			return true
		}
	}
	return usr.CheckPassword(n.provisionalPassword) == nil
}

func (n *Notifier) notify(ctx context.Context, usr user.User) EmailDetail {
	detail := EmailDetail{UserID: usr.ID, Email: usr.Email, Name: usr.Name}
	fail := func(err error) EmailDetail {
		n.logger.Error(fmt.Sprintf("roster: first access email to %s: %v", usr.Email, err), err, usr)
		detail.Status = EmailError
		detail.Error = err.Error()
		return detail
	}

	now := n.nowFunc()
	token, err := usr.IssueFirstAccessToken(now)
	if err != nil {
		return fail(errors.Wrap(err, "generating token"))
	}
	usr.UpdatedAt = now.UTC()
	if usr, err = n.users.UpdateUser(ctx, usr); err != nil {
		return fail(errors.Wrap(err, "storing token"))
	}

	link := FirstAccessLink(n.frontendBaseURL, token, usr.Email)
	mode, err := n.send(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Choose your password",
		TemplateName: firstAccessTemplate,
		TemplateData: map[string]interface{}{
			"Name": usr.Name,
			"Link": link,
		},
	})
	if err != nil {
		return fail(err)
	}

	detail.Status = statusFor(mode)
	detail.Token = token
	detail.ResetLink = link
	return detail
}

// send delivers msg, turning a panicking transport into an error.
func (n *Notifier) send(msg *core.EmailMessage) (mode core.DeliveryMode, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("email transport panic: %v", p)
		}
	}()
	return n.mailSvc.SendMessage(msg)
}

func statusFor(mode core.DeliveryMode) EmailStatus {
	switch mode {
	case core.DeliverySent:
		return EmailSent
	case core.DeliveryFile:
		return EmailSavedFile
	}
	return EmailSimulated
}
