package model

import "sort"

// Contact is a foreign fleet seen by this fleet's sensors.
type Contact struct {
	FleetID      string  `json:"fleetId"`
	EmpireID     string  `json:"empireId"`
	Position     Vector3 `json:"position"`
	CombatRating float64 `json:"combatRating"`
	LastSeen     float64 `json:"lastSeen"`
}

// FleetCommandState is the per-fleet aggregate root. Live (pending or
// active) orders are in Orders, and OrderQueue lists their ids in dispatch
// order. Terminal orders survive only as History records.
type FleetCommandState struct {
	FleetID  string `json:"fleetId"`
	EmpireID string `json:"empireId"`

	FlagshipID           string  `json:"flagshipId,omitempty"`
	CommandingOfficerID  string  `json:"commandingOfficerId,omitempty"`
	CommandEffectiveness float64 `json:"commandEffectiveness"`
	CommunicationRange   float64 `json:"communicationRange"`

	OrderQueue []string          `json:"orderQueue"`
	Orders     map[string]*Order `json:"orders"`
	History    []OrderRecord     `json:"history"`
	NextSeq    int64             `json:"nextSeq"`

	Formation             *FormationState `json:"formation,omitempty"`
	PendingReformTemplate string          `json:"pendingReformTemplate,omitempty"`

	Combat            CombatCapabilities `json:"combat"`
	CurrentEngagement string             `json:"currentEngagement,omitempty"`

	Logistics   LogisticsRequirements `json:"logistics"`
	SupplyLines []string              `json:"supplyLines,omitempty"`

	KnownContacts    map[string]Contact `json:"knownContacts,omitempty"`
	ThreatAssessment map[string]float64 `json:"threatAssessment,omitempty"`

	MissionSuccessRate float64 `json:"missionSuccessRate"`
	TotalMissions      int     `json:"totalMissions"`
	CombatExperience   float64 `json:"combatExperience"`

	AutomationLevel float64     `json:"automationLevel"`
	StandingOrders  []OrderKind `json:"standingOrders,omitempty"`

	LastUpdate float64 `json:"lastUpdate"`
}

// CompletedOrderIDs returns the ids of orders that reached a terminal state,
// oldest first.
func (s *FleetCommandState) CompletedOrderIDs() []string {
	ids := make([]string, len(s.History))
	for i, r := range s.History {
		ids[i] = r.ID
	}
	return ids
}

// OrdersWithStatus returns the fleet's live orders in the given status,
// sorted by sequence number.
func (s *FleetCommandState) OrdersWithStatus(status OrderStatus) []*Order {
	var out []*Order
	for _, o := range s.Orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Clone returns a deep copy.
func (s *FleetCommandState) Clone() *FleetCommandState {
	if s == nil {
		return nil
	}
	c := *s
	c.OrderQueue = append([]string(nil), s.OrderQueue...)
	c.Orders = make(map[string]*Order, len(s.Orders))
	for id, o := range s.Orders {
		c.Orders[id] = o.Clone()
	}
	c.History = append([]OrderRecord(nil), s.History...)
	c.Formation = s.Formation.Clone()
	c.Combat = s.Combat.Clone()
	c.Logistics = s.Logistics.Clone()
	c.SupplyLines = append([]string(nil), s.SupplyLines...)
	if s.KnownContacts != nil {
		c.KnownContacts = make(map[string]Contact, len(s.KnownContacts))
		for k, v := range s.KnownContacts {
			c.KnownContacts[k] = v
		}
	}
	if s.ThreatAssessment != nil {
		c.ThreatAssessment = make(map[string]float64, len(s.ThreatAssessment))
		for k, v := range s.ThreatAssessment {
			c.ThreatAssessment[k] = v
		}
	}
	c.StandingOrders = append([]OrderKind(nil), s.StandingOrders...)
	return &c
}

// TacticalStatus is the read-only summary handed to the UI and AI layers.
type TacticalStatus struct {
	FleetID              string             `json:"fleet_id"`
	CommandEffectiveness float64            `json:"command_effectiveness"`
	CurrentOrders        int                `json:"current_orders"`
	PendingOrders        int                `json:"pending_orders"`
	Formation            FormationSummary   `json:"formation"`
	Combat               CombatSummary      `json:"combat"`
	Logistics            LogisticsSummary   `json:"logistics"`
	Performance          PerformanceSummary `json:"performance"`
}

type FormationSummary struct {
	Active    bool    `json:"active"`
	Template  string  `json:"template"`
	Integrity float64 `json:"integrity"`
	Cohesion  float64 `json:"cohesion"`
}

type CombatSummary struct {
	InCombat     bool    `json:"in_combat"`
	CombatRating float64 `json:"combat_rating"`
	Experience   float64 `json:"experience"`
	Morale       float64 `json:"morale"`
}

type LogisticsSummary struct {
	FuelStatus       float64                `json:"fuel_status"`
	SupplyStatus     map[SupplyType]float64 `json:"supply_status"`
	MaintenanceDue   float64                `json:"maintenance_due"`
	MaintenanceLevel string                 `json:"maintenance_level"`
}

type PerformanceSummary struct {
	MissionSuccessRate float64 `json:"mission_success_rate"`
	TotalMissions      int     `json:"total_missions"`
}
