package modules

import (
	"errors"
	"net/http"

	coreerrors "github.com/0surface/Remittance/core/errors"
	"github.com/0surface/Remittance/core/types"
	"github.com/0surface/Remittance/native/remittance"
)

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
)

// Remittance error classes.
const (
	CodeRemittanceInvalid   = -32031
	CodeRemittanceForbidden = -32032
	CodeRemittanceConflict  = -32033
	CodeRemittanceLifecycle = -32034
	CodeNonceMismatch       = -32035
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

// fromError maps a node error onto a module error. Remittance failures carry
// their stable reason string as the message.
func fromError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	reason := remittance.Reason(err)
	switch {
	case errors.Is(err, types.ErrMissingSignature), errors.Is(err, types.ErrSenderMismatch):
		return &ModuleError{HTTPStatus: http.StatusUnauthorized, Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, coreerrors.ErrNonceMismatch):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: CodeNonceMismatch, Message: err.Error()}
	case errors.Is(err, coreerrors.ErrWrongContract),
		errors.Is(err, coreerrors.ErrInvalidParams),
		errors.Is(err, coreerrors.ErrUnexpectedValue):
		return invalidParams(err.Error(), nil)
	case errors.Is(err, coreerrors.ErrUnknownMethod):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeMethodNotFound, Message: err.Error()}
	case errors.Is(err, remittance.ErrInvalidInput):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: CodeRemittanceInvalid, Message: reason}
	case errors.Is(err, remittance.ErrUnauthorized):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: CodeRemittanceForbidden, Message: reason}
	case errors.Is(err, remittance.ErrConflict):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: CodeRemittanceConflict, Message: reason}
	case errors.Is(err, remittance.ErrLifecycle):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: CodeRemittanceLifecycle, Message: reason}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "internal error"}
	}
}
