package core

import "errors"

// Error taxonomy for the pipeline. Callers match with errors.Is; wrap with
// fmt.Errorf("...: %w", err) to add context.
var (
	// ErrValidation: malformed input, caught at the boundary.
	ErrValidation = errors.New("validation error")
	// ErrMaliciousInput: sanitizer rejection, request aborted with no side effects.
	ErrMaliciousInput = errors.New("malicious input")
	// ErrDuplicateApplication: soft conflict, resolved by returning the existing row.
	ErrDuplicateApplication = errors.New("duplicate application")
	// ErrDocumentNotFound: the referenced document bytes are missing.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrExternalUnavailable: an external service call failed or timed out.
	ErrExternalUnavailable = errors.New("external service unavailable")
	// ErrSignatureInvalid: webhook signature mismatch; payload is dropped.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrNotFound: referenced application/room does not exist.
	ErrNotFound = errors.New("not found")
)
