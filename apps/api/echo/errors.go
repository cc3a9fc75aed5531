package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

var (
	errMissingToken   = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken   = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errFileRequired   = core.NewValidationError(errors.New("invalid file"), core.FieldError{Field: "file", Error: "a file is required"})
	errInvalidHistory = core.NewValidationError(errors.New("invalid query"), core.FieldError{Field: "limit", Error: "must be a positive integer"})
)

// Stable machine-readable error codes.
const (
	codeBadRequest        = "bad_request"
	codeUnauthorized      = "unauthorized"
	codeForbidden         = "forbidden"
	codeValidationFailed  = "validation_failed"
	codeNotFound          = "not_found"
	codeNotGroupMember    = "not_group_member"
	codeNotProjectTeacher = "not_project_teacher"
	codeInvalidTransition = "invalid_transition"
	codeAlreadySubmitted  = "already_submitted"
	codeConflict          = "conflict"
	codeTransferFailed    = "transfer_failed"
	codeInternal          = "internal_error"
)

type errorResponse struct {
	Code      string            `json:"code"`
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusInternalServerError:
		return codeInternal
	default:
		return codeBadRequest
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code int
			res  errorResponse

			httpErr      *echo.HTTPError
			validErr     *core.ValidationError
			transErr     *deliverable.InvalidTransitionError
			submittedErr *deliverable.AlreadySubmittedError
			conflictErr  *deliverable.ConflictError
			transferErr  *deliverable.TransferError
		)

		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			res.Code = httpErrorCode(code)
			if msg, ok := httpErr.Message.(string); ok {
				res.Error = msg
			} else {
				res.Error = http.StatusText(code)
			}
		case errors.As(err, &validErr):
			code = http.StatusBadRequest
			res.Code = codeValidationFailed
			res.Error = validErr.Error()
			if validErr.Fields != nil {
				res.Fields = make(map[string]string, len(validErr.Fields))
				for _, fErr := range validErr.Fields {
					res.Fields[fErr.Field] = fErr.Error
				}
			}
		case errors.As(err, &conflictErr): // before the errors it may wrap
			code = http.StatusConflict
			res.Code = codeConflict
			res.Error = conflictErr.Error()
			res.Retryable = conflictErr.Retryable()
		case errors.Is(err, deliverable.ErrNotFound), errors.Is(err, deliverable.ErrNoFile), errors.Is(err, user.ErrNotFound):
			code = http.StatusNotFound
			res.Code = codeNotFound
			res.Error = errors.Cause(err).Error()
		case errors.Is(err, deliverable.ErrNotGroupMember):
			code = http.StatusForbidden
			res.Code = codeNotGroupMember
			res.Error = deliverable.ErrNotGroupMember.Error()
		case errors.Is(err, deliverable.ErrNotProjectTeacher):
			code = http.StatusForbidden
			res.Code = codeNotProjectTeacher
			res.Error = deliverable.ErrNotProjectTeacher.Error()
		case errors.As(err, &submittedErr): // unwraps to an InvalidTransitionError
			code = http.StatusConflict
			res.Code = codeAlreadySubmitted
			res.Error = submittedErr.Error()
		case errors.As(err, &transErr):
			code = http.StatusUnprocessableEntity
			res.Code = codeInvalidTransition
			res.Error = transErr.Error()
		case errors.As(err, &transferErr):
			code = http.StatusBadGateway
			res.Code = codeTransferFailed
			res.Error = transferErr.Error()
			res.Retryable = true
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			res.Code = codeInternal
			res.Error = msg
			if ctx.Echo().Debug {
				res.Error = err.Error()
			}

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = claims.User()
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
