package gossip

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nvandessel/gossipsim/internal/constants"
)

// Parameters holds the tunable knobs of the propagation algorithm.
type Parameters struct {
	// Fanout is how many neighbors an infected node targets per step. Must be >= 1.
	Fanout int `json:"fanout" yaml:"fanout"`

	// TransmissionProbability is the chance one delivery succeeds, in [0,1].
	TransmissionProbability float64 `json:"transmission_probability" yaml:"transmission_probability"`

	// MaxHopCount gates forwarding: a message is delivered only while its
	// hop count is below this value. Must be >= 1.
	MaxHopCount int `json:"max_hop_count" yaml:"max_hop_count"`

	// InfectionProbability is written to every node, in [0,1].
	InfectionProbability float64 `json:"infection_probability" yaml:"infection_probability"`

	// RecoveryProbability is written to every node, in [0,1].
	RecoveryProbability float64 `json:"recovery_probability" yaml:"recovery_probability"`
}

// DefaultParameters returns the standard parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		Fanout:                  constants.DefaultFanout,
		TransmissionProbability: constants.DefaultTransmissionProbability,
		MaxHopCount:             constants.DefaultMaxHopCount,
		InfectionProbability:    constants.DefaultInfectionProbability,
		RecoveryProbability:     constants.DefaultRecoveryProbability,
	}
}

// Validate checks every field against its range.
func (p Parameters) Validate() error {
	if p.Fanout < 1 {
		return fmt.Errorf("%w: fanout %d must be >= 1", ErrInvalidArgument, p.Fanout)
	}
	if p.MaxHopCount < 1 {
		return fmt.Errorf("%w: max_hop_count %d must be >= 1", ErrInvalidArgument, p.MaxHopCount)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"transmission_probability", p.TransmissionProbability},
		{"infection_probability", p.InfectionProbability},
		{"recovery_probability", p.RecoveryProbability},
	} {
		if err := validateProbability(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

func validateProbability(name string, v float64) error {
	if math.IsNaN(v) || v < constants.MinProbability || v > constants.MaxProbability {
		return fmt.Errorf("%w: %s %v must be in [%v, %v]",
			ErrInvalidArgument, name, v, constants.MinProbability, constants.MaxProbability)
	}
	return nil
}

// ParameterUpdate names the fields to change. Nil fields are left as they are.
type ParameterUpdate struct {
	Fanout                  *int     `json:"fanout,omitempty"`
	TransmissionProbability *float64 `json:"transmission_probability,omitempty"`
	MaxHopCount             *int     `json:"max_hop_count,omitempty"`
	InfectionProbability    *float64 `json:"infection_probability,omitempty"`
	RecoveryProbability     *float64 `json:"recovery_probability,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ParameterUpdate) Empty() bool {
	return u.Fanout == nil && u.TransmissionProbability == nil && u.MaxHopCount == nil &&
		u.InfectionProbability == nil && u.RecoveryProbability == nil
}

// Apply returns p with the update merged in. The result is not validated.
func (u ParameterUpdate) Apply(p Parameters) Parameters {
	if u.Fanout != nil {
		p.Fanout = *u.Fanout
	}
	if u.TransmissionProbability != nil {
		p.TransmissionProbability = *u.TransmissionProbability
	}
	if u.MaxHopCount != nil {
		p.MaxHopCount = *u.MaxHopCount
	}
	if u.InfectionProbability != nil {
		p.InfectionProbability = *u.InfectionProbability
	}
	if u.RecoveryProbability != nil {
		p.RecoveryProbability = *u.RecoveryProbability
	}
	return p
}

// ParameterNames lists the keys ParseParameterUpdate accepts, aliases excluded.
var ParameterNames = []string{
	"fanout",
	"transmission_probability",
	"max_hop_count",
	"infection_probability",
	"recovery_probability",
}

// ParseParameterUpdate converts a loosely typed field map (decoded JSON, tool
// arguments) into a ParameterUpdate. Unknown keys and mistyped values fail
// with ErrInvalidArgument. Integer fields accept integral floats, since
// encoding/json decodes every number as float64.
func ParseParameterUpdate(fields map[string]any) (ParameterUpdate, error) {
	var u ParameterUpdate

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := fields[key]
		switch key {
		case "fanout", "gossip_fanout":
			n, err := asInt(key, v)
			if err != nil {
				return ParameterUpdate{}, err
			}
			u.Fanout = &n
		case "max_hop_count":
			n, err := asInt(key, v)
			if err != nil {
				return ParameterUpdate{}, err
			}
			u.MaxHopCount = &n
		case "transmission_probability":
			f, err := asFloat(key, v)
			if err != nil {
				return ParameterUpdate{}, err
			}
			u.TransmissionProbability = &f
		case "infection_probability":
			f, err := asFloat(key, v)
			if err != nil {
				return ParameterUpdate{}, err
			}
			u.InfectionProbability = &f
		case "recovery_probability":
			f, err := asFloat(key, v)
			if err != nil {
				return ParameterUpdate{}, err
			}
			u.RecoveryProbability = &f
		default:
			return ParameterUpdate{}, fmt.Errorf("%w: unknown parameter %q (known: %s)",
				ErrInvalidArgument, key, strings.Join(ParameterNames, ", "))
		}
	}
	return u, nil
}

func asInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidArgument, key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidArgument, key, v)
	}
}

func asFloat(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidArgument, key, v)
	}
}
