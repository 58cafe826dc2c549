package rollover

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/simplechores/internal/database"
	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/points"
	"github.com/dukerupert/simplechores/internal/privilege"
	"github.com/dukerupert/simplechores/internal/registry"
	"github.com/dukerupert/simplechores/internal/store"
)

type fixture struct {
	reg       *registry.Registry
	ledger    *points.Ledger
	states    *store.ChoreStateStore
	engine    *privilege.Engine
	processor *Processor
}

func newFixture(t *testing.T, snap *model.Snapshot) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New()
	reg.ApplySnapshot(snap)

	ledger := points.NewLedger(store.NewLedgerStore(db), reg, logger)
	states := store.NewChoreStateStore(db)
	engine := privilege.NewEngine(reg, store.NewPrivilegeStateStore(db), logger)
	return &fixture{
		reg:       reg,
		ledger:    ledger,
		states:    states,
		engine:    engine,
		processor: NewProcessor(reg, ledger, states, engine, logger),
	}
}

func (f *fixture) mark(t *testing.T, assignee, slug string, to model.ChoreState) {
	t.Helper()
	key := model.Key{Assignee: assignee, Slug: slug}
	c, ok := f.reg.Chore(key)
	require.True(t, ok)
	from, err := f.reg.SetChoreState(key, to)
	require.NoError(t, err)
	_, err = f.ledger.RecordTransition(context.Background(), assignee, c.Def.Points, from, to)
	require.NoError(t, err)
}

func (f *fixture) state(t *testing.T, assignee, slug string) model.ChoreState {
	t.Helper()
	st, ok := f.reg.ChoreState(assignee, slug)
	require.True(t, ok)
	return st
}

func dishesSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Chores: []model.ChoreDefinition{
			{Name: "Dishes", Slug: "dishes", Frequency: model.FrequencyDaily, Assignees: []string{"alice"}, Points: 10},
		},
	}
}

func TestCompletedDailyChoreRollsOverWithoutMissing(t *testing.T) {
	f := newFixture(t, dishesSnapshot())
	ctx := context.Background()

	f.mark(t, "alice", "dishes", model.ChoreComplete)
	assert.Equal(t, model.Balance{Assignee: "alice", Total: 10, Earned: 10}, f.ledger.Balance("alice"))

	rep, err := f.processor.StartNewDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.ChorePending, f.state(t, "alice", "dishes"))
	assert.Equal(t, model.Balance{Assignee: "alice", Total: 10, Earned: 10}, f.ledger.Balance("alice"))
	assert.Equal(t, []model.Key{{Assignee: "alice", Slug: "dishes"}}, rep.Changed)
	assert.Empty(t, rep.Missed)
}

func TestPendingChoreAccruesMissedOnce(t *testing.T) {
	f := newFixture(t, dishesSnapshot())
	ctx := context.Background()

	f.mark(t, "alice", "dishes", model.ChoreComplete)
	f.mark(t, "alice", "dishes", model.ChorePending)
	assert.Equal(t, model.Balance{Assignee: "alice"}, f.ledger.Balance("alice"))

	rep, err := f.processor.StartNewDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 10}, rep.Missed)
	assert.Equal(t, 10, f.ledger.Balance("alice").Missed)
	assert.Equal(t, model.ChorePending, f.state(t, "alice", "dishes"))

	_, err = f.processor.StartNewDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 10, f.ledger.Balance("alice").Missed, "second rollover does not double count")

	records, err := f.states.LoadChoreStates(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].MissAccrued)
}

func TestNewPendingEpisodeAccruesAgain(t *testing.T) {
	f := newFixture(t, dishesSnapshot())
	ctx := context.Background()

	f.mark(t, "alice", "dishes", model.ChorePending)
	_, err := f.processor.StartNewDay(ctx, "")
	require.NoError(t, err)

	f.mark(t, "alice", "dishes", model.ChoreComplete)
	_, err = f.processor.StartNewDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.ChorePending, f.state(t, "alice", "dishes"))

	_, err = f.processor.StartNewDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 20, f.ledger.Balance("alice").Missed)
	assert.Equal(t, 10, f.ledger.Balance("alice").Earned)
}

func TestFrequencies(t *testing.T) {
	f := newFixture(t, &model.Snapshot{
		Chores: []model.ChoreDefinition{
			{Name: "Dishes", Slug: "dishes", Frequency: model.FrequencyDaily, Assignees: []string{"alice", "bob"}, Points: 10},
			{Name: "Garage", Slug: "garage", Frequency: model.FrequencyManual, Assignees: []string{"alice"}, Points: 20},
			{Name: "Paint", Slug: "paint", Frequency: model.FrequencyOnce, Assignees: []string{"alice"}, Points: 50},
			{Name: "Shed", Slug: "shed", Frequency: model.FrequencyOnce, Assignees: []string{"bob"}, Points: 30},
		},
	})
	ctx := context.Background()

	f.mark(t, "alice", "dishes", model.ChoreComplete)
	f.mark(t, "alice", "garage", model.ChoreComplete)
	f.mark(t, "alice", "paint", model.ChoreComplete)
	f.mark(t, "bob", "dishes", model.ChoreComplete)
	f.mark(t, "bob", "shed", model.ChorePending)

	_, err := f.processor.StartNewDay(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, model.ChorePending, f.state(t, "alice", "dishes"))
	assert.Equal(t, model.ChoreNotRequested, f.state(t, "alice", "garage"))
	assert.Equal(t, model.ChoreComplete, f.state(t, "alice", "paint"), "once chores are left alone")
	assert.Equal(t, model.ChoreComplete, f.state(t, "bob", "dishes"), "filtered out")

	_, err = f.processor.StartNewDay(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.ChorePending, f.state(t, "bob", "dishes"))
	assert.Equal(t, 0, f.ledger.Balance("bob").Missed, "pending once chores accrue nothing")

	_, err = f.processor.StartNewDay(ctx, "carol")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorContains(t, err, `assignee "carol" not found`)
}

func TestRolloverReevaluatesPrivileges(t *testing.T) {
	snap := dishesSnapshot()
	snap.Privileges = []model.PrivilegeDefinition{
		{Name: "TV", Slug: "tv", Behavior: model.BehaviorAutomatic, LinkedChores: []string{"dishes"}, Assignees: []string{"alice"}},
	}
	f := newFixture(t, snap)
	ctx := context.Background()
	tv := model.Key{Assignee: "alice", Slug: "tv"}

	f.mark(t, "alice", "dishes", model.ChoreComplete)
	_, err := f.engine.Evaluate(ctx, "alice")
	require.NoError(t, err)
	st, err := f.engine.State(ctx, tv)
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeEnabled, st.State)

	rep, err := f.processor.StartNewDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []model.Key{tv}, rep.Privileges)
	st, err = f.engine.State(ctx, tv)
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeDisabled, st.State)
}

func TestResetCompleted(t *testing.T) {
	f := newFixture(t, &model.Snapshot{
		Chores: []model.ChoreDefinition{
			{Name: "Dishes", Slug: "dishes", Frequency: model.FrequencyDaily, Assignees: []string{"alice"}, Points: 10},
			{Name: "Paint", Slug: "paint", Frequency: model.FrequencyOnce, Assignees: []string{"alice"}, Points: 50},
			{Name: "Trash", Slug: "trash", Frequency: model.FrequencyManual, Assignees: []string{"alice"}, Points: 5},
		},
	})
	ctx := context.Background()

	f.mark(t, "alice", "dishes", model.ChoreComplete)
	f.mark(t, "alice", "paint", model.ChoreComplete)
	f.mark(t, "alice", "trash", model.ChorePending)

	rep, err := f.processor.ResetCompleted(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rep.Changed, 2)
	assert.Equal(t, model.ChoreNotRequested, f.state(t, "alice", "dishes"))
	assert.Equal(t, model.ChoreNotRequested, f.state(t, "alice", "paint"))
	assert.Equal(t, model.ChorePending, f.state(t, "alice", "trash"))
	assert.Equal(t, 60, f.ledger.Balance("alice").Total, "reset does not move points")
}
