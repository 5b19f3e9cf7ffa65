package orders

import (
	"log/slog"

	"github.com/nstehr/armada/armada-core/model"
)

// Fleet is the executor's view of the fleet an order belongs to.
type Fleet interface {
	// Conditions builds the expression environment for o.
	Conditions(o *model.Order) ConditionEnv
	TargetAlive(fleetID string) bool
	// EngagedWith reports whether this fleet is in combat with fleetID.
	EngagedWith(fleetID string) bool
	// Reachable reports whether t lies inside the fleet's logistics range.
	Reachable(t model.Target) bool
	// TravelTime estimates how long reaching t takes at fleet speed.
	TravelTime(t model.Target) float64
	// Refuel tops up the tank for dt and returns the new fuel fraction.
	Refuel(dt float64) float64
	// EnsureFormation puts the fleet into templateID unless it already is.
	EnsureFormation(templateID string) error
	// Formation reports the live formation's integrity and formed flag.
	Formation() (integrity float64, formed, ok bool)
	// Complete applies the side effects of a finished order.
	Complete(o *model.Order)
}

// Transition records a status change, for notifications and bookkeeping.
type Transition struct {
	OrderID string            `json:"orderId"`
	Kind    model.OrderKind   `json:"kind"`
	From    model.OrderStatus `json:"from"`
	To      model.OrderStatus `json:"to"`
	Reason  string            `json:"reason,omitempty"`
}

// Transition reasons beyond the failure tags in model.
const (
	ReasonPreempted   = "preempted"
	ReasonSuspended   = "suspended"
	ReasonRepeat      = "repeat"
	ReasonUnknownKind = "unknown_kind"
)

// Executor runs the order state machine.
type Executor struct {
	conds *Conditions
	// MaxBlockedTicks fails a pending order whose precondition has failed on
	// more consecutive ticks than this. Zero waits forever.
	MaxBlockedTicks int
	// HistoryLimit caps the completed-order history. Zero keeps everything.
	HistoryLimit int
}

func NewExecutor(conds *Conditions) *Executor {
	return &Executor{conds: conds}
}

// Conditions returns the executor's condition cache.
func (e *Executor) Conditions() *Conditions { return e.conds }

// Tick advances every live order of one fleet in queue order. Within each
// category only the first runnable order is active; a lower-priority active
// order in a claimed category is preempted back to pending.
func (e *Executor) Tick(s *model.FleetCommandState, f Fleet, dt, now float64) []Transition {
	var out []Transition
	claimed := make(map[Category]bool)

	for _, id := range append([]string(nil), s.OrderQueue...) {
		o, ok := s.Orders[id]
		if !ok {
			continue
		}
		spec, err := SpecFor(o.Kind)
		if err != nil {
			slog.Warn("dropping order of unknown kind", "fleet", s.FleetID, "order", o.ID, "kind", o.Kind)
			out = append(out, e.fail(s, o, ReasonUnknownKind, now))
			continue
		}

		if claimed[spec.Category] {
			if o.Status == model.StatusActive {
				o.Status = model.StatusPending
				out = append(out, Transition{o.ID, o.Kind, model.StatusActive, model.StatusPending, ReasonPreempted})
			}
			continue
		}

		if o.Status == model.StatusPending && o.ParentID != "" {
			switch e.parentGate(s, o) {
			case parentWait:
				continue
			case parentFailed:
				out = append(out, e.fail(s, o, model.ReasonPreconditionPrefix+"parent", now))
				continue
			}
		}

		trs, ran := e.Advance(o, dt, now, f)
		out = append(out, trs...)
		if ran {
			claimed[spec.Category] = true
		}
		if o.Status.Terminal() {
			retire(s, o, e.HistoryLimit)
		}
	}
	return out
}

type parentState int

const (
	parentDone parentState = iota
	parentWait
	parentFailed
)

// parentGate decides whether a child may start. Children wait for their
// parent to complete; a parent that failed or was cancelled fails the child.
// A parent that has aged out of history counts as done.
func (e *Executor) parentGate(s *model.FleetCommandState, o *model.Order) parentState {
	if p, ok := s.Orders[o.ParentID]; ok && !p.Status.Terminal() {
		return parentWait
	}
	if rec, ok := findRecord(s, o.ParentID); ok && rec.Status != model.StatusCompleted {
		return parentFailed
	}
	return parentDone
}

// Advance moves one order through its state machine for dt. It reports the
// transitions taken and whether the order did active work this tick.
func (e *Executor) Advance(o *model.Order, dt, now float64, f Fleet) ([]Transition, bool) {
	if dt < 0 {
		dt = 0
	}
	spec, err := SpecFor(o.Kind)
	if err != nil {
		return nil, false
	}

	var out []Transition
	env := f.Conditions(o)
	switch o.Status {
	case model.StatusPending:
		if tag := e.conds.FirstFailing(e.preconditions(o, spec), env); tag != "" {
			o.BlockedTicks++
			o.StatusMessage = "waiting on " + tag
			if e.MaxBlockedTicks > 0 && o.BlockedTicks > e.MaxBlockedTicks {
				out = append(out, e.finish(o, model.StatusFailed, model.ReasonPreconditionPrefix+tag, now))
			}
			return out, false
		}
		if reason := e.activationFailure(o, f); reason != "" {
			return append(out, e.finish(o, model.StatusFailed, reason, now)), false
		}
		e.activate(o, spec, f, now)
		out = append(out, Transition{o.ID, o.Kind, model.StatusPending, model.StatusActive, ""})

	case model.StatusActive:
		if tag := e.conds.FirstFailing(e.preconditions(o, spec), env); tag != "" {
			o.Status = model.StatusPending
			o.StatusMessage = "suspended on " + tag
			return append(out, Transition{o.ID, o.Kind, model.StatusActive, model.StatusPending, ReasonSuspended}), false
		}

	default:
		return nil, false
	}

	if reason := e.progress(o, dt, f); reason != "" {
		return append(out, e.finish(o, model.StatusFailed, reason, now)), true
	}
	if o.Progress < 1 {
		return out, true
	}

	if tag := e.conds.FirstFailing(o.Postconditions, f.Conditions(o)); tag != "" {
		return append(out, e.finish(o, model.StatusFailed, model.ReasonPostconditionPrefix+tag, now)), true
	}
	f.Complete(o)
	if o.IsRepeating && (o.MaxRepeats == nil || o.RepeatCount < *o.MaxRepeats) {
		o.RepeatCount++
		o.Progress = 0
		o.Status = model.StatusPending
		o.StatusMessage = ""
		return append(out, Transition{o.ID, o.Kind, model.StatusActive, model.StatusPending, ReasonRepeat}), true
	}
	return append(out, e.finish(o, model.StatusCompleted, "", now)), true
}

// preconditions adds the implicit checks of a kind to the order's own tags.
func (e *Executor) preconditions(o *model.Order, spec KindSpec) []string {
	var tags []string
	if spec.Movement {
		tags = append(tags, "fuel_available")
	}
	if o.Kind == model.KindChangeFormation {
		tags = append(tags, "formation_stable")
	}
	return append(tags, o.Preconditions...)
}

// activationFailure checks what can only be known when the order starts.
func (e *Executor) activationFailure(o *model.Order, f Fleet) string {
	if o.Target.Position != nil && !f.Reachable(o.Target) {
		return model.ReasonTargetUnreachable
	}
	switch o.Kind {
	case model.KindAttack, model.KindEscort, model.KindFollow:
		if !f.TargetAlive(o.Target.FleetID) {
			return model.ReasonTargetDestroyed
		}
	case model.KindFormUp, model.KindChangeFormation:
		if err := f.EnsureFormation(TemplateParam(o)); err != nil {
			slog.Info("formation order could not start", "fleet", o.FleetID, "order", o.ID, "error", err)
			return model.ReasonFormationBroken
		}
	}
	return ""
}

func (e *Executor) activate(o *model.Order, spec KindSpec, f Fleet, now float64) {
	o.Status = model.StatusActive
	o.BlockedTicks = 0
	o.StatusMessage = ""
	if o.StartedAt == nil {
		t := now
		o.StartedAt = &t
	}
	if spec.Travel && o.EstimatedDuration <= 0 {
		o.EstimatedDuration = f.TravelTime(o.Target)
	}
}

// progress applies the kind-specific progress update. It returns a failure
// reason when the order cannot continue.
func (e *Executor) progress(o *model.Order, dt float64, f Fleet) string {
	next := o.Progress
	switch o.Kind {
	case model.KindRefuel:
		next = f.Refuel(dt)

	case model.KindFormUp, model.KindChangeFormation:
		integrity, formed, ok := f.Formation()
		if !ok {
			return model.ReasonFormationBroken
		}
		next = integrity
		if formed {
			next = 1
		}

	case model.KindAttack:
		target := o.Target.FleetID
		if f.EngagedWith(target) {
			if o.Parameters == nil {
				o.Parameters = make(map[string]any)
			}
			o.Parameters[paramEngaged] = true
		}
		if !f.TargetAlive(target) {
			if engaged, _ := o.Parameters[paramEngaged].(bool); !engaged {
				return model.ReasonTargetDestroyed
			}
			next = 1
			break
		}
		next = stepDuration(o, dt)

	case model.KindEscort, model.KindFollow:
		if !f.TargetAlive(o.Target.FleetID) {
			return model.ReasonTargetDestroyed
		}
		next = stepDuration(o, dt)

	default:
		next = stepDuration(o, dt)
	}

	// Progress never goes backwards while active.
	o.Progress = clamp(max(o.Progress, next), 0, 1)
	return ""
}

func stepDuration(o *model.Order, dt float64) float64 {
	if o.EstimatedDuration <= 0 {
		return 1
	}
	return o.Progress + dt/o.EstimatedDuration
}

func (e *Executor) finish(o *model.Order, status model.OrderStatus, reason string, now float64) Transition {
	from := o.Status
	o.Status = status
	o.FailureReason = reason
	t := now
	o.CompletedAt = &t
	return Transition{o.ID, o.Kind, from, status, reason}
}

// fail marks o failed and retires it.
func (e *Executor) fail(s *model.FleetCommandState, o *model.Order, reason string, now float64) Transition {
	tr := e.finish(o, model.StatusFailed, reason, now)
	retire(s, o, e.HistoryLimit)
	return tr
}

// FailWhere fails every live order matching pred with reason.
func (e *Executor) FailWhere(s *model.FleetCommandState, reason string, now float64, pred func(*model.Order) bool) []Transition {
	var out []Transition
	for _, id := range append([]string(nil), s.OrderQueue...) {
		if o, ok := s.Orders[id]; ok && pred(o) {
			out = append(out, e.fail(s, o, reason, now))
		}
	}
	return out
}

// Cancel cancels a live order and its live descendants. It returns false
// when id is unknown or already terminal.
func (e *Executor) Cancel(s *model.FleetCommandState, id string, now float64) ([]Transition, bool) {
	o, ok := s.Orders[id]
	if !ok || o.Status.Terminal() {
		return nil, false
	}

	var out []Transition
	seen := make(map[string]bool)
	var walk func(o *model.Order)
	walk = func(o *model.Order) {
		if seen[o.ID] {
			return
		}
		seen[o.ID] = true
		out = append(out, e.finish(o, model.StatusCancelled, "", now))
		retire(s, o, e.HistoryLimit)
		for _, cid := range o.ChildIDs {
			if c, ok := s.Orders[cid]; ok && !c.Status.Terminal() {
				walk(c)
			}
		}
	}
	walk(o)
	return out, true
}

// clamp restricts v to [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
