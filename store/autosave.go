package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/nstehr/armada/armada-core/model"
)

// Source is anything that can hand out copies of fleet command state.
type Source interface {
	Export() []*model.FleetCommandState
}

// Autosaver snapshots a Source on a cron schedule.
type Autosaver struct {
	store *Store
	src   Source
	// Clock supplies the game time stamped on each snapshot.
	clock func() float64
	keep  int

	mu   sync.Mutex
	cron *cron.Cron
	last Snapshot
}

// NewAutosaver keeps the newest keep snapshots; zero keeps them all.
func NewAutosaver(st *Store, src Source, clock func() float64, keep int) *Autosaver {
	if clock == nil {
		clock = func() float64 { return 0 }
	}
	return &Autosaver{store: st, src: src, clock: clock, keep: keep}
}

// Start schedules saves. The schedule accepts standard five-field cron
// specs and descriptors such as "@every 5m".
func (a *Autosaver) Start(ctx context.Context, schedule string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cron != nil {
		return fmt.Errorf("autosave already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := a.SaveNow(ctx); err != nil {
			slog.Error("autosave failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("autosave schedule %q: %w", schedule, err)
	}
	c.Start()
	a.cron = c
	slog.Info("autosave scheduled", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running save to finish.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// SaveNow takes a snapshot immediately.
func (a *Autosaver) SaveNow(ctx context.Context) (Snapshot, error) {
	snap, err := a.store.Save(ctx, a.src.Export(), a.clock())
	if err != nil {
		return Snapshot{}, err
	}
	if a.keep > 0 {
		if n, err := a.store.Prune(ctx, a.keep); err != nil {
			slog.Warn("snapshot prune failed", "error", err)
		} else if n > 0 {
			slog.Debug("old snapshots pruned", "count", n)
		}
	}
	a.mu.Lock()
	a.last = snap
	a.mu.Unlock()
	return snap, nil
}

// Last returns the most recent snapshot taken by this autosaver.
func (a *Autosaver) Last() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
