package core

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/orbital-engine/model"
)

// ErrConfiguration is the sentinel for invalid or missing force, profile, or
// scenario parameters. It is always detected at setup time, before any
// propagation starts; force models never fall back to silent defaults.
var ErrConfiguration = errors.New("invalid configuration")

// ForceModel computes one perturbation's acceleration contribution at a
// given epoch and state. Implementations are pure: they read nothing but
// their own parameters and the arguments, and never mutate shared state.
type ForceModel interface {
	// Name returns a stable lowercase identifier, e.g. "j2" or "drag".
	Name() string
	// Acceleration returns the contribution in m/s^2, in the same ECI frame
	// as the inputs.
	Acceleration(epoch time.Time, pos, vel model.Vec3) model.Vec3
}

// validatable is implemented by force models whose parameters need checking
// at composition build time.
type validatable interface {
	validate() error
}

// Composition is an unordered collection of active force models. Total
// acceleration is the sum over contributors, so adding or removing a model
// never touches the summation logic. The sum is commutative; evaluation
// order only affects the result at floating-point rounding level.
type Composition struct {
	models []ForceModel
}

// NewComposition validates every contributor's parameters and returns the
// composition. Any invalid or missing parameter surfaces as an error
// wrapping ErrConfiguration.
func NewComposition(models ...ForceModel) (*Composition, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: composition needs at least one force model", ErrConfiguration)
	}
	for _, m := range models {
		if m == nil {
			return nil, fmt.Errorf("%w: nil force model", ErrConfiguration)
		}
		if v, ok := m.(validatable); ok {
			if err := v.validate(); err != nil {
				return nil, err
			}
		}
	}
	out := make([]ForceModel, len(models))
	copy(out, models)
	return &Composition{models: out}, nil
}

// Total returns the summed acceleration of all contributors.
func (c *Composition) Total(epoch time.Time, pos, vel model.Vec3) model.Vec3 {
	var total model.Vec3
	for _, m := range c.models {
		total = total.Add(m.Acceleration(epoch, pos, vel))
	}
	return total
}

// Models returns the contributors. The slice is a copy; the contributors
// themselves are immutable values.
func (c *Composition) Models() []ForceModel {
	out := make([]ForceModel, len(c.models))
	copy(out, c.models)
	return out
}

// Names returns the sorted contributor names, mainly for logging.
func (c *Composition) Names() []string {
	names := make([]string, 0, len(c.models))
	for _, m := range c.models {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}
