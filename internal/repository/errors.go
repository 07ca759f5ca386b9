package repository

import "errors"

// Sentinel errors shared by every store implementation.
var (
	// ErrVersionConflict is returned by a conditional write whose expected
	// version no longer matches the stored document.
	ErrVersionConflict = errors.New("version conflict")

	// ErrAlreadyExists is returned when creating a document whose id is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrLeaseHeld is returned when another owner holds an unexpired lease.
	ErrLeaseHeld = errors.New("lease held by another owner")

	// ErrLeaseLost is returned when committing a checkpoint for a lease the caller no longer owns.
	ErrLeaseLost = errors.New("lease lost")
)
