package ipc

import "github.com/nstehr/armada/armada-core/model"

// Request types sent by the turn engine.
const (
	TypeRegisterFleet   = "register_fleet"
	TypeFleetDestroyed  = "fleet_destroyed"
	TypeIssueOrder      = "issue_order"
	TypeCancelOrder     = "cancel_order"
	TypeSetFormation    = "set_formation"
	TypeBreakFormation  = "break_formation"
	TypeStartEngagement = "start_engagement"
	TypeTick            = "tick"
	TypeTacticalStatus  = "tactical_status"
)

// Every request carries the engine's current game time in Now.

type RegisterFleetCommand struct {
	Fleet model.Fleet `json:"fleet"`
	Now   float64     `json:"now" validate:"gte=0"`
}

type FleetDestroyedCommand struct {
	FleetID string  `json:"fleet_id" validate:"required"`
	Now     float64 `json:"now" validate:"gte=0"`
}

type IssueOrderCommand struct {
	FleetID           string         `json:"fleet_id" validate:"required"`
	Kind              string         `json:"kind" validate:"required,order_kind"`
	Priority          string         `json:"priority,omitempty" validate:"omitempty,oneof=low normal high critical"`
	Target            model.Target   `json:"target"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	Preconditions     []string       `json:"preconditions,omitempty" validate:"dive,required"`
	Postconditions    []string       `json:"postconditions,omitempty" validate:"dive,required"`
	ParentOrderID     string         `json:"parent_order_id,omitempty"`
	IsRepeating       bool           `json:"is_repeating,omitempty"`
	MaxRepeats        *int           `json:"max_repeats,omitempty" validate:"omitempty,gte=0"`
	EstimatedDuration float64        `json:"estimated_duration,omitempty" validate:"gte=0"`
	Now               float64        `json:"now" validate:"gte=0"`
}

type CancelOrderCommand struct {
	FleetID string  `json:"fleet_id" validate:"required"`
	OrderID string  `json:"order_id" validate:"required"`
	Now     float64 `json:"now" validate:"gte=0"`
}

type SetFormationCommand struct {
	FleetID    string  `json:"fleet_id" validate:"required"`
	TemplateID string  `json:"template_id" validate:"required"`
	Now        float64 `json:"now" validate:"gte=0"`
}

type BreakFormationCommand struct {
	FleetID string  `json:"fleet_id" validate:"required"`
	Now     float64 `json:"now" validate:"gte=0"`
}

type StartEngagementCommand struct {
	Attackers []string `json:"attackers" validate:"required,min=1,dive,required"`
	Defenders []string `json:"defenders" validate:"required,min=1,dive,required"`
	Now       float64  `json:"now" validate:"gte=0"`
}

// TickCommand advances every registered fleet. Fleets carries fresh
// snapshots; fleets left out keep their last known snapshot.
type TickCommand struct {
	DT     float64       `json:"dt" validate:"gte=0"`
	Now    float64       `json:"now" validate:"gte=0"`
	Fleets []model.Fleet `json:"fleets,omitempty"`
}

type TacticalStatusCommand struct {
	FleetID string `json:"fleet_id" validate:"required"`
}
