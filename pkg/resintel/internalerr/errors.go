package internalerr

import "errors"

// Sentinel errors for common cases
var (
	// ErrInsufficientData is returned when a corpus has fewer documents than an analysis needs.
	ErrInsufficientData = errors.New("insufficient data")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	// ErrModelUnavailable marks missing or unusable model artifacts or embedder failures.
	ErrModelUnavailable = errors.New("model unavailable")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrUpstream         = errors.New("upstream service error")
)

// MinDocuments is the smallest corpus the analyses accept.
const MinDocuments = 5
