package rpc

import (
	"errors"
	"net/http"

	"ontlock/core"
	"ontlock/native/vault"
)

// errorCode maps an operation failure onto a JSON-RPC code and HTTP status.
func errorCode(err error) (status int, code int) {
	if errors.Is(err, core.ErrUnknownOperation) {
		return http.StatusNotFound, codeMethodNotFound
	}
	switch vault.ClassOf(err) {
	case vault.ClassValidation:
		return http.StatusBadRequest, codeInvalidParams
	case vault.ClassAuthorization:
		return http.StatusUnauthorized, codeUnauthorized
	case vault.ClassInvariant:
		return http.StatusConflict, codeInvariant
	case vault.ClassCollaborator:
		return http.StatusConflict, codeCollaborator
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
