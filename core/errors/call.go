package errors

import stderrors "errors"

var (
	ErrWrongContract   = stderrors.New("call: addressed to a different contract")
	ErrNonceMismatch   = stderrors.New("call: nonce mismatch")
	ErrUnknownMethod   = stderrors.New("call: unknown method")
	ErrInvalidParams   = stderrors.New("call: invalid params")
	ErrUnexpectedValue = stderrors.New("call: method does not accept value")
)
