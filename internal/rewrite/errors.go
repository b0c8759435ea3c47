package rewrite

import "errors"

// ErrEncode is returned when a rewritten document cannot be serialized.
// The node must be skipped, never partially written.
var ErrEncode = errors.New("failed to encode rewritten metadata")
