package strategy

import (
	"fmt"
)

// Builder constructs a strategy instance from its deploy-time inputs.
type Builder func(id, name string, cfg Config) (Strategy, error)

// builders is the closed dispatch table for deployable types. New
// strategy kinds register here, not through reflection.
var builders = map[Type]Builder{
	TypeShortStraddle: newShortStraddle,
	TypeIronCondor:    newIronCondor,
}

func build(t Type, id, name string, cfg Config) (Strategy, error) {
	builder, ok := builders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	return builder(id, name, cfg)
}

// ParseType maps a config tag to a strategy type.
func ParseType(tag string) (Type, error) {
	switch tag {
	case "SHORT_STRADDLE":
		return TypeShortStraddle, nil
	case "IRON_CONDOR":
		return TypeIronCondor, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
}
