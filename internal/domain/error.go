package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrVerificationFailed = errors.New("gateway reported transaction not verified")
	ErrTransitionConflict = errors.New("payment status transition lost the race")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
