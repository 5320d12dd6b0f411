package abilities

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes reported to callers.
const (
	CodeNotFound           = "ability_not_found"
	CodeInvalidInput       = "ability_invalid_input"
	CodeInvalidPermissions = "ability_invalid_permissions"
	CodeInvalidOutput      = "ability_invalid_output"
	CodeExecutionFailed    = "ability_execution_failed"
	CodeInvalidMethod      = "rest_ability_invalid_method"
)

var (
	ErrAlreadyRegistered = errors.New("ability already registered")
	ErrCategoryNotFound  = errors.New("ability category not registered")

	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrPermissionDenied = &Error{Code: CodeInvalidPermissions}
)

// Error is a structured failure from a registered ability. Errors compare equal
// under errors.Is when their codes match.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// HTTPStatus maps the error onto a REST response status.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInvalidPermissions:
		return http.StatusForbidden
	case CodeInvalidMethod:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func newError(code string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}
