package chain

import "errors"

var (
	// ErrAuthorization is returned when the actor may not perform the operation
	ErrAuthorization = errors.New("not authorized")

	// ErrInvariantViolation is returned when an operation would break a chain or request rule
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound is returned when an org lookup has nothing configured
	ErrNotFound = errors.New("not found")

	// ErrIntegrity is returned when stored chain state is inconsistent and needs repair
	ErrIntegrity = errors.New("chain integrity violation")
)
