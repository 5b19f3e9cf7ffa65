package orders

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ConditionEnv is what precondition and postcondition expressions see.
type ConditionEnv struct {
	Fuel         float64
	FuelCapacity float64
	FuelFraction float64

	HasFormation       bool
	Formed             bool
	FormationBreaking  bool
	FormationIntegrity float64

	InCombat     bool
	Morale       float64
	CombatRating float64
	Experience   float64

	MaintenanceStatus    float64
	CommandEffectiveness float64
	ShipCount            int

	TargetAlive bool
	Now         float64
}

// Well-known tags. Any other tag is compiled as an expression itself.
var wellKnown = map[string]string{
	"fuel_available":   `Fuel > 0`,
	"fuel_reserve":     `FuelFraction >= 0.25`,
	"formation_stable": `!FormationBreaking`,
	"formed":           `Formed`,
	"not_in_combat":    `!InCombat`,
	"in_combat":        `InCombat`,
	"morale_steady":    `Morale >= 25`,
	"target_alive":     `TargetAlive`,
	"maintenance_ok":   `MaintenanceStatus <= 0.8`,
}

// Conditions compiles condition tags into expr programs and caches them.
// Safe for concurrent use; registry workers share one instance.
type Conditions struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func NewConditions() *Conditions {
	return &Conditions{programs: make(map[string]*vm.Program)}
}

// Compile returns the program for tag, compiling it on first use.
func (c *Conditions) Compile(tag string) (*vm.Program, error) {
	c.mu.RLock()
	p, ok := c.programs[tag]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	src := tag
	if s, ok := wellKnown[tag]; ok {
		src = s
	}
	p, err := expr.Compile(src, expr.Env(ConditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCondition, tag, err)
	}

	c.mu.Lock()
	c.programs[tag] = p
	c.mu.Unlock()
	return p, nil
}

// Validate compiles every tag and returns the first error.
func (c *Conditions) Validate(tags []string) error {
	for _, t := range tags {
		if _, err := c.Compile(t); err != nil {
			return err
		}
	}
	return nil
}

// Eval runs a single tag against env.
func (c *Conditions) Eval(tag string, env ConditionEnv) (bool, error) {
	p, err := c.Compile(tag)
	if err != nil {
		return false, err
	}
	out, err := vm.Run(p, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", tag, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// FirstFailing returns the first tag that does not hold, or "" when all do.
// A tag that errors counts as failing.
func (c *Conditions) FirstFailing(tags []string, env ConditionEnv) string {
	for _, t := range tags {
		if ok, err := c.Eval(t, env); err != nil || !ok {
			return t
		}
	}
	return ""
}
