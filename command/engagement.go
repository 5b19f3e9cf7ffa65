package command

import (
	"github.com/nstehr/armada/armada-core/combat"
	"github.com/nstehr/armada/armada-core/model"
)

// fleetInfo is a lock-free copy of what the registry needs to know about a
// fleet to detect engagements and contacts.
type fleetInfo struct {
	ID            string
	EmpireID      string
	SystemID      string
	Position      model.Vector3
	Rating        float64
	Range         float64
	Engagement    string
	AttackTargets []string
}

func (c *Controller) info() fleetInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	fi := fleetInfo{ID: c.fleet.ID, EmpireID: c.fleet.EmpireID, SystemID: c.fleet.SystemID, Position: c.fleet.Position}
	if c.state == nil {
		return fi
	}
	fi.ID = c.state.FleetID
	fi.Rating = c.state.Combat.CombatRating
	fi.Range = c.state.Combat.MaxEngagementRange
	fi.Engagement = c.state.CurrentEngagement
	for _, o := range c.state.OrdersWithStatus(model.StatusActive) {
		if o.Kind == model.KindAttack && o.Target.FleetID != "" {
			fi.AttackTargets = append(fi.AttackTargets, o.Target.FleetID)
		}
	}
	return fi
}

// participant snapshots the fleet for one engagement step.
func (c *Controller) participant() (combat.Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return combat.Participant{}, false
	}
	p := combat.Participant{
		FleetID:        c.state.FleetID,
		EmpireID:       c.state.EmpireID,
		Caps:           c.state.Combat.Clone(),
		ShipCount:      len(c.fleet.Ships),
		CombatModifier: 1,
	}
	if st := c.state.Formation; st != nil && st.IsFormed {
		if tmpl, err := c.deps.Formations.Catalog().Get(st.TemplateID); err == nil {
			p.CombatModifier = tmpl.CombatEffectivenessModifier
		}
	}
	return p, true
}

func (c *Controller) joinEngagement(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		c.state.CurrentEngagement = id
	}
}

func (c *Controller) applyHit(h combat.Hit) combat.DamageResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return combat.DamageResult{}
	}
	return combat.ApplyDamage(&c.state.Combat, h.Amount, h.Type, len(c.fleet.Ships))
}

func (c *Controller) leaveEngagement(id string, experience float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil || c.state.CurrentEngagement != id {
		return
	}
	c.state.CurrentEngagement = ""
	combat.GainExperience(&c.state.Combat, experience)
	c.state.CombatExperience = c.state.Combat.ExperienceLevel
}

func (c *Controller) setContacts(contacts map[string]model.Contact, threats map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		c.state.KnownContacts = contacts
		c.state.ThreatAssessment = threats
	}
}
