package notify

import "context"

// Category groups notifications by the subsystem that raised them.
type Category string

const (
	CategoryOrder     Category = "order"
	CategoryFormation Category = "formation"
	CategoryCombat    Category = "combat"
	CategoryLogistics Category = "logistics"
	CategoryFleet     Category = "fleet"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is a player-facing message about a fleet.
type Notification struct {
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Timestamp   float64  `json:"timestamp"`
	EmpireID    string   `json:"empireId"`
	FleetID     string   `json:"fleetId,omitempty"`
}

// Sink accepts notifications. Post must not block on delivery.
type Sink interface {
	Post(n Notification)
}

// Handler delivers a notification somewhere. A returned error asks the
// dispatcher to retry.
type Handler func(ctx context.Context, n Notification) error

// Predicate selects the notifications a handler wants.
type Predicate func(n Notification) bool

// ForCategory matches notifications of any of the given categories.
func ForCategory(cats ...Category) Predicate {
	return func(n Notification) bool {
		for _, c := range cats {
			if n.Category == c {
				return true
			}
		}
		return false
	}
}

// ForEmpire matches notifications about one empire's fleets.
func ForEmpire(empire string) Predicate {
	return func(n Notification) bool { return n.EmpireID == empire }
}

// AtLeast matches notifications at or above p.
func AtLeast(p Priority) Predicate {
	return func(n Notification) bool { return rank(n.Priority) >= rank(p) }
}

func rank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	}
	return 0
}

// Discard drops everything.
type Discard struct{}

func (Discard) Post(Notification) {}
