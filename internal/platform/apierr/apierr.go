package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
)

const (
	CodeNotFound           = "not_found"
	CodeInvalidArgument    = "invalid_argument"
	CodeUnsupportedFormat  = "unsupported_format"
	CodePreconditionFailed = "precondition_failed"
	CodeModelError         = "model_error"
	CodePayloadTooLarge    = "payload_too_large"
	CodeInternal           = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a service error onto its HTTP status and code. An *Error
// already in the chain wins.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return New(http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, errs.ErrUnsupportedFormat):
		return New(http.StatusBadRequest, CodeUnsupportedFormat, err)
	case errors.Is(err, errs.ErrInvalidArgument):
		return New(http.StatusBadRequest, CodeInvalidArgument, err)
	case errors.Is(err, errs.ErrPrecondition):
		return New(http.StatusBadRequest, CodePreconditionFailed, err)
	case steps.IsStageError(err):
		return New(http.StatusBadGateway, CodeModelError, err)
	default:
		return New(http.StatusInternalServerError, CodeInternal, err)
	}
}
