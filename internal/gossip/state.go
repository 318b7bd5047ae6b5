package gossip

import "fmt"

// State is a node's position in the SIR epidemic model.
// Transitions only move forward: Susceptible -> Infected -> Removed.
type State int

const (
	Susceptible State = iota
	Infected
	Removed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Susceptible:
		return "susceptible"
	case Infected:
		return "infected"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "susceptible":
		*s = Susceptible
	case "infected":
		*s = Infected
	case "removed":
		*s = Removed
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, string(text))
	}
	return nil
}
