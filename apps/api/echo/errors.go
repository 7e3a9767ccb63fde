package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/profile"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "profile not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, profile.ErrAccountDeactivated.Error())
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errFileRequired       = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
)

// sentinelStatus maps the sentinel service errors onto HTTP status codes.
func sentinelStatus(err error) (int, bool) {
	switch err {
	case core.ErrPermissionDenied, core.ErrReadOnly, profile.ErrAccountDeactivated:
		return http.StatusForbidden, true
	case profile.ErrAuthenticationFailed:
		return http.StatusBadRequest, true
	}
	return 0, false
}

// resolveError maps err onto a status code and a response body. unexpected reports a server error.
func resolveError(err error, translator ut.Translator) (code int, body interface{}, unexpected bool) {
	if pErr, ok := core.AsPersistenceError(err); ok {
		return http.StatusConflict, echo.Map{"error": pErr.Error(), "table": pErr.Table}, false
	}

	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, cause.Message, false
		}
		if inner, ok := cause.Internal.(*echo.HTTPError); ok {
			cause = inner
		}
		return cause.Code, cause.Message, false

	case validator.ValidationErrors:
		fields := make(map[string]string, len(cause))
		for _, fe := range cause {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields, false

	case *core.ValidationError:
		if cause.Fields == nil {
			return http.StatusBadRequest, cause.Error(), false
		}
		fields := make(map[string]string, len(cause.Fields))
		for _, fe := range cause.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields, false

	case *core.NotFoundError:
		return http.StatusNotFound, cause.Error(), false
	}

	if status, ok := sentinelStatus(errors.Cause(err)); ok {
		return status, errors.Cause(err).Error(), false
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), true
}

// newAppHTTPErrorHandler renders errors through resolveError. Unexpected errors are logged,
// and signalShutdown is called when one of them is a core shutdown error.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, unexpected := resolveError(err, translator)
		if unexpected {
			msg := http.StatusText(code)
			logger.Error(msg, errors.Wrap(err, msg), getSession(ctx))
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			body = err.Error()
		} else if m, ok := body.(string); ok {
			body = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
