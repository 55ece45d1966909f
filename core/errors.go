package core

import (
	"errors"
	"fmt"

	"ontlock/native/vault"
)

var (
	// ErrUnknownOperation is returned for operation names the node does not
	// serve.
	ErrUnknownOperation = errors.New("core: unknown operation")
	// ErrArity is returned when an operation receives the wrong number of
	// arguments.
	ErrArity = errors.New("core: wrong number of arguments")
	// ErrInvalidArgument is returned when an argument cannot be parsed.
	ErrInvalidArgument = errors.New("core: invalid argument")
	// ErrNodeClosed is returned after Close.
	ErrNodeClosed = errors.New("core: node closed")
)

func validationError(op string, err error) error {
	return &vault.OpError{Op: op, Class: vault.ClassValidation, Err: err}
}

func authorizationError(op string, err error) error {
	return &vault.OpError{Op: op, Class: vault.ClassAuthorization, Err: err}
}

func internalError(op string, err error) error {
	return &vault.OpError{Op: op, Class: vault.ClassInternal, Err: err}
}

func arityError(op string, want, got int) error {
	return validationError(op, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, op, want, got))
}
