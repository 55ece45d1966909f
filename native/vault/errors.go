package vault

import (
	"errors"
	"fmt"
)

var (
	ErrFieldTooLong      = errors.New("vault: string is too long")
	ErrWebsiteRequired   = errors.New("vault: website required")
	ErrInvalidAmount     = errors.New("vault: amount must be positive")
	ErrUnauthorized      = errors.New("vault: address is not witness")
	ErrAllowanceExceeded = errors.New("vault: allowance exceeded")
	ErrStakeLocked       = errors.New("vault: stake still locked")
	ErrInsufficientStake = errors.New("vault: unstake exceeds current stake")
	ErrCounterUnderflow  = errors.New("vault: stored count underflow")
	ErrCounterOverflow   = errors.New("vault: counter overflow")
	ErrTransferFailed    = errors.New("vault: token transfer failed")
	ErrEntryNotFound     = errors.New("vault: entry not found")

	errNilState    = errors.New("vault engine: state not configured")
	errNilTransfer = errors.New("vault engine: transfer not configured")
	errNilHeight   = errors.New("vault engine: height source not configured")
)

// Class groups failures by cause. Every class aborts the operation.
type Class string

const (
	ClassValidation    Class = "validation"
	ClassAuthorization Class = "authorization"
	ClassInvariant     Class = "invariant"
	ClassCollaborator  Class = "collaborator"
	ClassInternal      Class = "internal"
)

// OpError reports which operation failed and why.
type OpError struct {
	Op    string
	Class Class
	Err   error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// ClassOf extracts the failure class; errors not raised by the engine are
// internal.
func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Class
	}
	return ClassInternal
}

func fail(op string, class Class, err error) error {
	return &OpError{Op: op, Class: class, Err: err}
}
