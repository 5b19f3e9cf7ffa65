package orders

import (
	"fmt"
	"sort"

	"github.com/nstehr/armada/armada-core/model"
)

// before reports whether a runs ahead of b: higher priority first, then
// older, then lower sequence number.
func before(a, b *model.Order) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra > rb
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.Seq < b.Seq
}

// Insert adds o to the fleet's live orders at its queue position. A child
// order is linked to its parent, which must be live.
func Insert(s *model.FleetCommandState, o *model.Order) error {
	if s.Orders == nil {
		s.Orders = make(map[string]*model.Order)
	}
	if o.ParentID != "" {
		parent, ok := s.Orders[o.ParentID]
		if !ok {
			return fmt.Errorf("%w: %q is not a live order of fleet %s", ErrInvalidParent, o.ParentID, s.FleetID)
		}
		parent.ChildIDs = append(parent.ChildIDs, o.ID)
	}

	i := sort.Search(len(s.OrderQueue), func(i int) bool {
		return before(o, s.Orders[s.OrderQueue[i]])
	})
	s.OrderQueue = append(s.OrderQueue, "")
	copy(s.OrderQueue[i+1:], s.OrderQueue[i:])
	s.OrderQueue[i] = o.ID
	s.Orders[o.ID] = o
	return nil
}

func removeFromQueue(s *model.FleetCommandState, id string) {
	for i, qid := range s.OrderQueue {
		if qid == id {
			s.OrderQueue = append(s.OrderQueue[:i], s.OrderQueue[i+1:]...)
			return
		}
	}
}

// retire moves a terminal order from the live set into history, keeping at
// most limit records when limit is positive.
func retire(s *model.FleetCommandState, o *model.Order, limit int) {
	removeFromQueue(s, o.ID)
	delete(s.Orders, o.ID)

	rec := model.OrderRecord{ID: o.ID, Kind: o.Kind, Status: o.Status, FailureReason: o.FailureReason}
	if o.CompletedAt != nil {
		rec.CompletedAt = *o.CompletedAt
	}
	s.History = append(s.History, rec)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]model.OrderRecord(nil), s.History[len(s.History)-limit:]...)
	}
}

// findRecord looks an order up in the fleet's history.
func findRecord(s *model.FleetCommandState, id string) (model.OrderRecord, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].ID == id {
			return s.History[i], true
		}
	}
	return model.OrderRecord{}, false
}
