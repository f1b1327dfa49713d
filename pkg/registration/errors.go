package registration

import "errors"

// ErrInvalidArgument is wrapped by every error caused by an out-of-range or
// unrecognized caller-supplied value (bin counts, method names, mode names).
// Failures of the underlying minimizers propagate unwrapped.
var ErrInvalidArgument = errors.New("invalid argument")
