package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrRemoteUnreachable indicates the remote store could not be reached
	ErrRemoteUnreachable = errors.New("remote store is unreachable")

	// ErrAuthFailed indicates the remote store rejected the credentials
	ErrAuthFailed = errors.New("access token is invalid")

	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrNoMatch indicates an update matched no row. It wraps ErrNotFound.
	ErrNoMatch = fmt.Errorf("no matching row: %w", ErrNotFound)

	// ErrUnknownDataset indicates a dataset name outside the known set
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrUnknownOperation indicates a queued operation with an unsupported kind
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidIdentifier indicates a collection or column name that is not a plain identifier
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDrainInProgress indicates a resync was requested while another is running
	ErrDrainInProgress = errors.New("resync already in progress")

	// ErrNoSession indicates no signed-in user is available
	ErrNoSession = errors.New("no signed-in session")
)
