package remittance

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every sentinel below wraps exactly one of these so callers
// can branch on the class with errors.Is.
var (
	ErrInvalidInput = errors.New("remittance: invalid input")
	ErrUnauthorized = errors.New("remittance: unauthorized")
	ErrConflict     = errors.New("remittance: state conflict")
	ErrLifecycle    = errors.New("remittance: lifecycle")
)

// Input validation.
var (
	ErrZeroRecipient          = fmt.Errorf("%w: remitter address can not be null", ErrInvalidInput)
	ErrEmptyPassword          = fmt.Errorf("%w: receiverPassword can not be empty", ErrInvalidInput)
	ErrEmptyHandlerPassword   = fmt.Errorf("%w: handlerPassword can not be empty", ErrInvalidInput)
	ErrIdenticalPasswords     = fmt.Errorf("%w: passwords can not be the same", ErrInvalidInput)
	ErrPasswordIsAddress      = fmt.Errorf("%w: password can not be an address", ErrInvalidInput)
	ErrPasswordArity          = fmt.Errorf("%w: wrong number of passwords", ErrInvalidInput)
	ErrZeroKey                = fmt.Errorf("%w: Invalid key value", ErrInvalidInput)
	ErrInvalidAmount          = fmt.Errorf("%w: Invalid minimum amount", ErrInvalidInput)
	ErrInvalidMinLockDuration = fmt.Errorf("%w: Invalid minumum lock duration", ErrInvalidInput)
	ErrInvalidMaxLockDuration = fmt.Errorf("%w: Invalid maximum lock duration", ErrInvalidInput)
	ErrZeroOwner              = fmt.Errorf("%w: new owner can not be null", ErrInvalidInput)
)

// Authorization.
var (
	ErrNotOwner     = fmt.Errorf("%w: Caller is not owner", ErrUnauthorized)
	ErrNotDepositor = fmt.Errorf("%w: Caller is not depositor", ErrUnauthorized)
)

// State conflicts.
var (
	ErrKeyActive         = fmt.Errorf("%w: Invalid, key has active deposit", ErrConflict)
	ErrNotOwedWithdrawal = fmt.Errorf("%w: Sender is not owed a withdrawal", ErrConflict)
	ErrNotOwedRefund     = fmt.Errorf("%w: Caller is not owed a refund", ErrConflict)
	ErrRefundNotEligible = fmt.Errorf("%w: Deposit is not yet eligible for refund", ErrConflict)
	ErrWithdrawalExpired = fmt.Errorf("%w: withdrawal period has expired", ErrConflict)
	ErrTransferFailed    = fmt.Errorf("%w: transfer failed", ErrConflict)
	ErrInsolvent         = fmt.Errorf("%w: custody balance below outstanding", ErrConflict)
)

// Lifecycle.
var (
	ErrPaused    = fmt.Errorf("%w: Contract is paused", ErrLifecycle)
	ErrNotPaused = fmt.Errorf("%w: Contract is not paused", ErrLifecycle)
)

// ErrParamsMismatch indicates the deployment parameters pinned in state differ
// from the ones the engine was built with.
var ErrParamsMismatch = errors.New("remittance: deployment parameters mismatch")

var (
	errNilState     = errors.New("remittance engine: state not configured")
	errNotInitiated = errors.New("remittance engine: contract config missing")
)

// Reason returns the stable reason string of a remittance error, without the
// package and class prefixes. Unknown errors are returned verbatim.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range reasonSentinels {
		if errors.Is(err, sentinel) {
			return reasonOf(sentinel)
		}
	}
	return err.Error()
}

var reasonSentinels = []error{
	ErrZeroRecipient, ErrEmptyPassword, ErrEmptyHandlerPassword, ErrIdenticalPasswords, ErrPasswordIsAddress,
	ErrPasswordArity, ErrZeroKey, ErrInvalidAmount, ErrInvalidMinLockDuration,
	ErrInvalidMaxLockDuration, ErrZeroOwner, ErrNotOwner, ErrNotDepositor,
	ErrKeyActive, ErrNotOwedWithdrawal, ErrNotOwedRefund, ErrRefundNotEligible,
	ErrWithdrawalExpired, ErrTransferFailed, ErrInsolvent, ErrPaused, ErrNotPaused,
}

func reasonOf(sentinel error) string {
	for _, class := range []error{ErrInvalidInput, ErrUnauthorized, ErrConflict, ErrLifecycle} {
		if reason, ok := strings.CutPrefix(sentinel.Error(), class.Error()+": "); ok {
			return reason
		}
	}
	return sentinel.Error()
}
