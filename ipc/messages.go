package ipc

import "github.com/nstehr/armada/armada-core/model"

// These constants must stay in sync with the turn engine's message table.
const (
	TypeHello                = "hello"
	TypeAck                  = "ack"
	TypeOrderResult          = "order_result"
	TypeTacticalStatusResult = "tactical_status_result"
	TypeTickResult           = "tick_result"
	TypeNotification         = "notification"
)

type HelloMessage struct {
	Empire string `json:"empire" validate:"required"`
	// Sectors carries the coarse sector grid of each star system.
	// Optional: without it every engagement is fought in open space.
	Sectors []model.SectorGrid `json:"sectors,omitempty" validate:"dive"`
}

// Ack statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type AckMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	// ID carries whatever the request created, such as an engagement id.
	ID string `json:"id,omitempty"`
}

type OrderResultMessage struct {
	FleetID  string `json:"fleet_id"`
	Accepted bool   `json:"accepted"`
	// Message is the order id on success and the reason otherwise.
	Message string `json:"message"`
}

type TacticalStatusResultMessage struct {
	Status model.TacticalStatus `json:"status"`
	Error  string               `json:"error,omitempty"`
}

// TickResultMessage answers a tick with the fleets that were rolled back
// and the engagements still being fought.
type TickResultMessage struct {
	Failed      []string                 `json:"failed,omitempty"`
	Engagements []model.CombatEngagement `json:"engagements,omitempty"`
}
