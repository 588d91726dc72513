package engine

import "errors"

// ErrConfiguration is wrapped by every error caused by misuse of the
// construction API: empty workflows, rewired edges, duplicate job names.
var ErrConfiguration = errors.New("configuration error")

var errUnresolvedData = errors.New("unresolved data dependency")
