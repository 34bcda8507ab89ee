package emailsvc

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalia/avalia/core"
	logsvc "github.com/avalia/avalia/services/logger"
)

func testConfig(t *testing.T) *core.Config {
	return &core.Config{
		AppName:  "Avalia",
		TestMode: true,
		Email: core.EmailConfig{
			FileDir:          t.TempDir(),
			DefaultFromName:  "Avalia",
			DefaultFromEmail: "noreply@avalia.test",
			SendgridAPIKey:   "sg-key",
		},
	}
}

func testLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stderr, "", 0), conf)
}

func newMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:      []mail.Address{{Name: "Ana", Address: "ana@example.com"}},
		Subject: "Hello",
		BodyStr: "hello there",
	}
}

func TestConsoleServiceMock(t *testing.T) {
	conf := testConfig(t)
	svc := NewConsoleServiceMock(conf, testLogger(conf))
	ResetSentMessages()

	mode, err := svc.SendMessage(newMessage())
	require.NoError(t, err)
	assert.Equal(t, core.DeliverySimulated, mode)

	svc.SendMessages(newMessage(), &core.EmailMessage{Subject: "no recipients"})
	assert.Len(t, SentMessages, 2)
	assert.Equal(t, "hello there", SentMessages[0].TextContent)

	_, err = svc.SendMessage(&core.EmailMessage{To: newMessage().To})
	assert.Equal(t, core.ErrEmptyMessage, err)
}

func TestFileService(t *testing.T) {
	conf := testConfig(t)
	svc := NewFileService(conf, testLogger(conf))

	mode, err := svc.SendMessage(newMessage())
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryFile, mode)

	files, err := filepath.Glob(filepath.Join(conf.Email.FileDir, "*.eml"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "Subject: [Avalia] Hello")
	assert.Contains(t, string(content), `To: "Ana" <ana@example.com>`)
	assert.Contains(t, string(content), "hello there")
}

// brokenFile accepts writes and fails on close, like a full disk flushing late.
type brokenFile struct {
	bytes.Buffer
}

func (f *brokenFile) Close() error { return errors.New("no space left on device") }

func TestFileServiceCloseError(t *testing.T) {
	conf := testConfig(t)
	svc := NewFileService(conf, testLogger(conf))
	orig := createFile
	defer func() { createFile = orig }()

	f := new(brokenFile)
	createFile = func(string) (io.WriteCloser, error) { return f, nil }

	mode, err := svc.SendMessage(newMessage())
	assert.Equal(t, core.DeliveryFile, mode)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing email file: no space left on device")
	assert.Contains(t, f.String(), "hello there")
}

func TestSendgridService(t *testing.T) {
	conf := testConfig(t)
	svc := NewSendgridService(conf, testLogger(conf))
	orig := sendgridAPI
	defer func() { sendgridAPI = orig }()

	tests := []struct {
		name    string
		res     *rest.Response
		err     error
		wantErr string
	}{
		{name: "accepted", res: &rest.Response{StatusCode: http.StatusAccepted}},
		{name: "rejected", res: &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, wantErr: "sendgrid status: 401"},
		{name: "network error", err: errors.New("connection refused"), wantErr: "connection refused"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got rest.Request
			sendgridAPI = func(req rest.Request) (*rest.Response, error) {
				got = req
				return tc.res, tc.err
			}

			mode, err := svc.SendMessage(newMessage())
			assert.Equal(t, core.DeliverySent, mode)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
			assert.Equal(t, http.MethodPost, string(got.Method))
			assert.True(t, strings.Contains(string(got.Body), "ana@example.com"))
		})
	}
}

func TestNewEmailService(t *testing.T) {
	conf := testConfig(t)
	logger := testLogger(conf)

	conf.Email.Backend = core.EmailBackendSendgrid
	assert.IsType(t, &sendgridService{}, NewEmailService(conf, logger))

	conf.Email.SendgridAPIKey = ""
	assert.IsType(t, &consoleService{}, NewEmailService(conf, logger))

	conf.Email.Backend = core.EmailBackendFile
	assert.IsType(t, &fileService{}, NewEmailService(conf, logger))

	conf.Email.Backend = core.EmailBackendConsole
	assert.IsType(t, &consoleService{}, NewEmailService(conf, logger))
}
