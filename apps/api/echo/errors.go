package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/roster"
	"github.com/avalia/avalia/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errFirstAccessRequired  = echo.NewHTTPError(http.StatusForbidden, "first access required: choose your password with the link sent by email")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	errDocumentNotFound = errors.New("roster document not found")
)

// importError is a roster import that did not run. It is answered with a roster.FailureEnvelope.
type importError struct {
	err error
}

func (e *importError) Error() string { return e.err.Error() }

// status maps the cause of a failed import to its HTTP status and the message shown to the caller.
func (e *importError) status() (int, string) {
	switch {
	case errors.Cause(e.err) == errDocumentNotFound:
		return http.StatusNotFound, e.err.Error()
	case roster.IsMalformedInput(e.err):
		return http.StatusBadRequest, errors.Cause(e.err).Error()
	}
	return http.StatusInternalServerError, "import failed: " + http.StatusText(http.StatusInternalServerError)
}

// contextUserInfo identifies the caller in error reports.
func contextUserInfo(ctx echo.Context) user.User {
	var usr user.User
	if claims, err := getContextClaims(ctx); err == nil {
		usr.ID = claims.Subject
		usr.Name = claims.Name
		usr.Email = claims.Email
	}
	return usr
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}
		envelope := false

		switch origErr := errors.Cause(err).(type) {
		case *importError:
			var msg string
			code, msg = origErr.status()
			message = roster.Failure(msg)
			envelope = true
			if code == http.StatusInternalServerError {
				logger.Error(fmt.Sprintf("roster import failed: %v", origErr.err), origErr.err, contextUserInfo(ctx))
				if core.IsShutdown(origErr.err) {
					signalShutdown()
				}
			}
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(fmt.Sprintf("%s: %v", msg, err), errors.Wrap(err, msg), contextUserInfo(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// roster failures keep their envelope, debug mode included
		if !envelope {
			if ctx.Echo().Debug {
				message = err.Error()
			} else if m, ok := message.(string); ok {
				message = echo.Map{"error": m}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
