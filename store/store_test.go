package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstehr/armada/armada-core/model"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleStates() []*model.FleetCommandState {
	return []*model.FleetCommandState{
		{
			FleetID:    "f1",
			EmpireID:   "terran",
			FlagshipID: "f1-flag",
			Orders: map[string]*model.Order{
				"o1": {ID: "o1", FleetID: "f1", Kind: model.KindPatrol, Status: model.StatusPending, Priority: model.PriorityNormal},
			},
			OrderQueue: []string{"o1"},
		},
		{FleetID: "f2", EmpireID: "vegan"},
	}
}

type staticSource struct{ states []*model.FleetCommandState }

func (s staticSource) Export() []*model.FleetCommandState { return s.states }

func TestLatestEmpty(t *testing.T) {
	st := openMem(t)
	_, _, err := st.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.NoError(t, st.Verify(context.Background()))
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)

	first, err := st.Save(ctx, sampleStates(), 10)
	require.NoError(t, err)
	assert.Equal(t, GenesisHash, first.PrevHash)
	assert.Equal(t, 2, first.Fleets)
	assert.Len(t, first.Hash, 64)

	second, err := st.Save(ctx, sampleStates()[:1], 20)
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PrevHash)
	assert.NotEqual(t, first.Hash, second.Hash)

	states, snap, err := st.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, snap.ID)
	assert.Equal(t, 20.0, snap.TakenAt)
	require.Len(t, states, 1)
	assert.Equal(t, "f1", states[0].FleetID)
	assert.Equal(t, []string{"o1"}, states[0].OrderQueue)
	assert.Equal(t, model.KindPatrol, states[0].Orders["o1"].Kind)

	assert.NoError(t, st.Verify(ctx))
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	for i := 0; i < 3; i++ {
		_, err := st.Save(ctx, sampleStates(), float64(i))
		require.NoError(t, err)
	}

	_, err := st.db.ExecContext(ctx, "UPDATE command_snapshots SET prev_hash = 'forged' WHERE id = 2")
	require.NoError(t, err)
	assert.ErrorIs(t, st.Verify(ctx), ErrChainBroken)
}

func TestLatestRejectsCorruptBlob(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	_, err := st.Save(ctx, sampleStates(), 1)
	require.NoError(t, err)

	_, err = st.db.ExecContext(ctx, "UPDATE command_snapshots SET state_blob = x'00ff00ff'")
	require.NoError(t, err)
	_, _, err = st.Latest(ctx)
	assert.ErrorIs(t, err, ErrChainBroken)
}

func TestPruneKeepsChainVerifiable(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	for i := 0; i < 5; i++ {
		_, err := st.Save(ctx, sampleStates(), float64(i))
		require.NoError(t, err)
	}

	n, err := st.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, st.Verify(ctx))

	_, snap, err := st.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4.0, snap.TakenAt)
}

func TestAutosaverSaveNow(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	now := 42.0
	a := NewAutosaver(st, staticSource{sampleStates()}, func() float64 { return now }, 2)

	for i := 0; i < 3; i++ {
		_, err := a.SaveNow(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 42.0, a.Last().TakenAt)

	var count int
	require.NoError(t, st.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM command_snapshots").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestAutosaverSchedule(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	a := NewAutosaver(st, staticSource{sampleStates()}, nil, 0)

	assert.Error(t, a.Start(ctx, "not a schedule"))

	require.NoError(t, a.Start(ctx, "@every 1s"))
	assert.Error(t, a.Start(ctx, "@every 1s"), "second start should fail")
	defer a.Stop()

	require.Eventually(t, func() bool { return a.Last().ID > 0 }, 5*time.Second, 50*time.Millisecond)
}
