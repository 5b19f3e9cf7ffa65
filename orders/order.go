package orders

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nstehr/armada/armada-core/model"
)

var (
	ErrUnknownKind      = errors.New("unknown order kind")
	ErrInvalidTarget    = errors.New("invalid order target")
	ErrInvalidPriority  = errors.New("invalid order priority")
	ErrInvalidCondition = errors.New("invalid order condition")
	ErrInvalidParent    = errors.New("invalid parent order")
	ErrInvalidRepeat    = errors.New("invalid repeat budget")
)

// Request carries everything a caller may specify when issuing an order.
type Request struct {
	Kind              model.OrderKind
	Priority          model.OrderPriority
	Target            model.Target
	Parameters        map[string]any
	Preconditions     []string
	Postconditions    []string
	ParentID          string
	IsRepeating       bool
	MaxRepeats        *int
	EstimatedDuration float64
}

// New validates req and builds a pending order. It does not check that the
// parent exists; Insert does that against the fleet's state.
func New(fleetID string, req Request, now float64, seq int64, conds *Conditions) (*model.Order, error) {
	spec, err := SpecFor(req.Kind)
	if err != nil {
		return nil, err
	}
	if err := validateTarget(req.Kind, spec, req.Target); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}
	if priority.Rank() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	if req.MaxRepeats != nil && *req.MaxRepeats < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRepeat, *req.MaxRepeats)
	}
	if err := conds.Validate(req.Preconditions); err != nil {
		return nil, err
	}
	if err := conds.Validate(req.Postconditions); err != nil {
		return nil, err
	}

	duration := req.EstimatedDuration
	if duration <= 0 && !spec.Travel {
		duration = spec.Duration
	}

	o := &model.Order{
		ID:                uuid.NewString(),
		FleetID:           fleetID,
		Kind:              req.Kind,
		Priority:          priority,
		Status:            model.StatusPending,
		Parameters:        make(map[string]any, len(req.Parameters)),
		Target:            req.Target,
		CreatedAt:         now,
		EstimatedDuration: duration,
		Preconditions:     append([]string(nil), req.Preconditions...),
		Postconditions:    append([]string(nil), req.Postconditions...),
		ParentID:          req.ParentID,
		IsRepeating:       req.IsRepeating,
		Seq:               seq,
	}
	for k, v := range req.Parameters {
		o.Parameters[k] = v
	}
	if req.Target.Position != nil {
		p := *req.Target.Position
		o.Target.Position = &p
	}
	if req.MaxRepeats != nil {
		m := *req.MaxRepeats
		o.MaxRepeats = &m
	}
	return o, nil
}

func validateTarget(kind model.OrderKind, spec KindSpec, t model.Target) error {
	set := t.Kinds()
	switch {
	case len(set) > 1:
		return fmt.Errorf("%w: %s target sets %v, at most one allowed", ErrInvalidTarget, kind, set)
	case len(set) == 0 && spec.TargetRequired:
		return fmt.Errorf("%w: %s requires a target", ErrInvalidTarget, kind)
	case len(set) == 1 && !spec.Accepts(set[0]):
		return fmt.Errorf("%w: %s does not take a %s target", ErrInvalidTarget, kind, set[0])
	}
	return nil
}

// TemplateParam returns the formation template an order names, if any.
func TemplateParam(o *model.Order) string {
	s, _ := o.Parameters[ParamFormationTemplate].(string)
	return s
}

// Parameter keys understood by the executor.
const (
	ParamFormationTemplate = "formation_template_id"
	paramEngaged           = "engaged"
)
