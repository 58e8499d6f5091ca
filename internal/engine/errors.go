package engine

import "errors"

// Error taxonomy for the progression engine. HTTP handlers map these with
// errors.Is; everything else surfaces as an internal error.
var (
	// ErrNotFound reports an unknown word, sentence, or record id.
	ErrNotFound = errors.New("kotoba: not found")

	// ErrInvalidInput reports an out-of-range rating, unknown domain,
	// or an operation that is meaningless in the record's current state.
	ErrInvalidInput = errors.New("kotoba: invalid input")

	// ErrDuplicateSubmission reports a replayed idempotency key. Callers
	// treat it as success and receive the original result.
	ErrDuplicateSubmission = errors.New("kotoba: duplicate submission")

	// ErrUpstreamUnavailable reports a failed content or morphology
	// collaborator after the retry budget is spent. Scheduling state is
	// untouched when this is returned.
	ErrUpstreamUnavailable = errors.New("kotoba: upstream unavailable")
)
