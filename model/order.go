package model

// OrderKind is the closed set of directives a fleet accepts.
type OrderKind string

const (
	KindMoveTo          OrderKind = "move_to"
	KindAttack          OrderKind = "attack"
	KindPatrol          OrderKind = "patrol"
	KindDefend          OrderKind = "defend"
	KindEscort          OrderKind = "escort"
	KindBlockade        OrderKind = "blockade"
	KindSurvey          OrderKind = "survey"
	KindRepair          OrderKind = "repair"
	KindRefuel          OrderKind = "refuel"
	KindResupply        OrderKind = "resupply"
	KindFormUp          OrderKind = "form_up"
	KindChangeFormation OrderKind = "change_formation"
	KindHoldPosition    OrderKind = "hold_position"
	KindFollow          OrderKind = "follow"
	KindJump            OrderKind = "jump"
	KindOrbit           OrderKind = "orbit"
	KindExplore         OrderKind = "explore"
)

// OrderKinds lists every kind, in declaration order.
var OrderKinds = []OrderKind{
	KindMoveTo, KindAttack, KindPatrol, KindDefend, KindEscort, KindBlockade,
	KindSurvey, KindRepair, KindRefuel, KindResupply, KindFormUp,
	KindChangeFormation, KindHoldPosition, KindFollow, KindJump, KindOrbit,
	KindExplore,
}

type OrderPriority string

const (
	PriorityLow      OrderPriority = "low"
	PriorityNormal   OrderPriority = "normal"
	PriorityHigh     OrderPriority = "high"
	PriorityCritical OrderPriority = "critical"
)

// Rank orders priorities; higher runs first. Unknown priorities rank below low.
func (p OrderPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	}
	return -1
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusActive    OrderStatus = "active"
	StatusCompleted OrderStatus = "completed"
	StatusFailed    OrderStatus = "failed"
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Failure reasons are short tags so callers can branch on them.
const (
	ReasonOutOfFuel           = "out_of_fuel"
	ReasonTargetDestroyed     = "target_destroyed"
	ReasonTargetUnreachable   = "target_unreachable"
	ReasonFormationBroken     = "formation_broken"
	ReasonPreconditionPrefix  = "precondition_failed:"
	ReasonPostconditionPrefix = "postcondition_failed:"
)

type TargetKind string

const (
	TargetNone     TargetKind = "none"
	TargetPosition TargetKind = "position"
	TargetFleet    TargetKind = "fleet"
	TargetSystem   TargetKind = "system"
	TargetPlanet   TargetKind = "planet"
)

// Target names what an order acts on. At most one field may be set.
type Target struct {
	Position *Vector3 `json:"position,omitempty"`
	FleetID  string   `json:"fleetId,omitempty"`
	SystemID string   `json:"systemId,omitempty"`
	PlanetID string   `json:"planetId,omitempty"`
}

// Kinds returns every target variant that is set.
func (t Target) Kinds() []TargetKind {
	var out []TargetKind
	if t.Position != nil {
		out = append(out, TargetPosition)
	}
	if t.FleetID != "" {
		out = append(out, TargetFleet)
	}
	if t.SystemID != "" {
		out = append(out, TargetSystem)
	}
	if t.PlanetID != "" {
		out = append(out, TargetPlanet)
	}
	return out
}

// Order is a single directive issued to a fleet. It is owned by the fleet's
// command state; parent and child links are ids only.
type Order struct {
	ID                string         `json:"id"`
	FleetID           string         `json:"fleetId"`
	Kind              OrderKind      `json:"kind"`
	Priority          OrderPriority  `json:"priority"`
	Status            OrderStatus    `json:"status"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	Target            Target         `json:"target"`
	CreatedAt         float64        `json:"createdAt"`
	StartedAt         *float64       `json:"startedAt,omitempty"`
	CompletedAt       *float64       `json:"completedAt,omitempty"`
	EstimatedDuration float64        `json:"estimatedDuration"`
	Progress          float64        `json:"progress"`
	Preconditions     []string       `json:"preconditions,omitempty"`
	Postconditions    []string       `json:"postconditions,omitempty"`
	ParentID          string         `json:"parentId,omitempty"`
	ChildIDs          []string       `json:"childIds,omitempty"`
	IsRepeating       bool           `json:"isRepeating"`
	RepeatCount       int            `json:"repeatCount"`
	MaxRepeats        *int           `json:"maxRepeats,omitempty"`
	Seq               int64          `json:"seq"`
	FailureReason     string         `json:"failureReason,omitempty"`
	StatusMessage     string         `json:"statusMessage,omitempty"`
	BlockedTicks      int            `json:"blockedTicks"`
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.Parameters != nil {
		c.Parameters = make(map[string]any, len(o.Parameters))
		for k, v := range o.Parameters {
			c.Parameters[k] = v
		}
	}
	if o.Target.Position != nil {
		p := *o.Target.Position
		c.Target.Position = &p
	}
	if o.StartedAt != nil {
		t := *o.StartedAt
		c.StartedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	if o.MaxRepeats != nil {
		m := *o.MaxRepeats
		c.MaxRepeats = &m
	}
	c.Preconditions = append([]string(nil), o.Preconditions...)
	c.Postconditions = append([]string(nil), o.Postconditions...)
	c.ChildIDs = append([]string(nil), o.ChildIDs...)
	return &c
}

// OrderRecord is what remains of an order once it reaches a terminal state.
type OrderRecord struct {
	ID            string      `json:"id"`
	Kind          OrderKind   `json:"kind"`
	Status        OrderStatus `json:"status"`
	FailureReason string      `json:"failureReason,omitempty"`
	CompletedAt   float64     `json:"completedAt"`
}
