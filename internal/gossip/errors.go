package gossip

import "errors"

var (
	// ErrConfiguration indicates invalid construction parameters. Errors from
	// the topology builder are wrapped alongside it, so errors.Is matches both
	// this and topology.ErrConfiguration.
	ErrConfiguration = errors.New("gossip: invalid configuration")

	// ErrInvalidArgument indicates a call received an unknown node id, an
	// unrecognized parameter name, or an out-of-range value. State is untouched.
	ErrInvalidArgument = errors.New("gossip: invalid argument")
)
