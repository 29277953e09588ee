package launchpad

import (
	"errors"
	"fmt"
)

// Kind groups transition failures by what went wrong.
type Kind string

const (
	KindTiming     Kind = "timing"
	KindState      Kind = "state"
	KindArithmetic Kind = "arithmetic"
	KindEmptyClaim Kind = "empty_claim"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
)

// Error is a locally detected transition failure. Records touched by the
// failed transition are left unchanged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrPoolNotStarted    = &Error{Kind: KindTiming, Code: "PoolNotStarted", Message: "pool has not started yet"}
	ErrPoolEnded         = &Error{Kind: KindTiming, Code: "PoolEnded", Message: "pool has ended"}
	ErrCliffNotReached   = &Error{Kind: KindTiming, Code: "CliffNotReached", Message: "cliff period has not been reached"}
	ErrPoolFinalized     = &Error{Kind: KindState, Code: "PoolFinalized", Message: "pool is already finalized"}
	ErrNumberOverflow    = &Error{Kind: KindArithmetic, Code: "NumberOverflow", Message: "numeric overflow"}
	ErrNoTokensToClaim   = &Error{Kind: KindEmptyClaim, Code: "NoTokensToClaim", Message: "no tokens available to claim"}
	ErrInvalidPoolParams = &Error{Kind: KindValidation, Code: "InvalidPoolParams", Message: "invalid pool parameters"}
	ErrInvalidAmount     = &Error{Kind: KindValidation, Code: "InvalidAmount", Message: "amount must be greater than zero"}
	ErrInvalidIdentity   = &Error{Kind: KindValidation, Code: "InvalidIdentity", Message: "invalid identity"}
	ErrPoolExists        = &Error{Kind: KindConflict, Code: "PoolExists", Message: "pool already exists"}
	ErrVestingExists     = &Error{Kind: KindConflict, Code: "VestingExists", Message: "vesting slot already in use"}
	ErrPoolNotFound      = &Error{Kind: KindNotFound, Code: "PoolNotFound", Message: "pool not found"}
	ErrVestingNotFound   = &Error{Kind: KindNotFound, Code: "VestingNotFound", Message: "vesting schedule not found"}
)

// KindOf reports the kind of a transition error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// CodeOf reports the stable code of a transition error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func withDetail(base *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// FatalError reports value that left custody (or entered it) without a
// matching persisted record. It cannot be repaired locally and must be
// escalated to whoever operates the ledger.
type FatalError struct {
	Op        string
	PoolID    string
	VestingID string
	Account   string
	Amount    uint64
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal inconsistency in %s (pool=%s vesting=%s account=%s amount=%d): %v",
		e.Op, e.PoolID, e.VestingID, e.Account, e.Amount, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
