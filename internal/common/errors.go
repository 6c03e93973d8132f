// Package common defines sentinel errors and small helpers shared by the
// relay server and the chat client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// wire-level errors
	ErrFraming = errors.New("framing error")

	// session errors
	ErrAuthRejected      = errors.New("authentication rejected")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrPeerUnreachable   = errors.New("peer unreachable")

	// directory errors
	ErrStorageFailure = errors.New("storage failure")

	// configuration errors
	ErrInvalidPort = errors.New("invalid port")
)
