package topology

import "errors"

// ErrConfiguration indicates invalid construction parameters: a negative node
// count, a non-positive or non-finite region, a margin that leaves no interior,
// or a non-positive radius factor.
// Callers branch with errors.Is; the wrapped message names the failing value.
var ErrConfiguration = errors.New("topology: invalid configuration")

// ErrNodeNotFound indicates an accessor received an id outside 0..Len()-1.
var ErrNodeNotFound = errors.New("topology: node not found")
