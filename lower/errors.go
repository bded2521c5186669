package lower

import (
	"errors"
)

var (
	// ErrUnsupportedQualifier: the comprehension contains a qualifier
	// variant this backend has no lowering for. Raised before any solver
	// call, it indicates a policy authoring defect, never retried.
	ErrUnsupportedQualifier = errors.New("unsupported qualifier")

	// ErrEncodingConflict: the forced encoding cannot express the
	// comprehension, eg interval encoding against per target capacities.
	ErrEncodingConflict = errors.New("encoding conflict")

	// ErrProjectionMismatch: results were queried for a solve that did not
	// end Optimal or Feasible, or a tracked variable carries no value.
	// A programming contract violation, fatal, never retried.
	ErrProjectionMismatch = errors.New("projection mismatch")
)
