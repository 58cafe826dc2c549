package privilege

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/registry"
)

type fakeStore struct {
	records map[model.Key]model.PrivilegeRecord
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[model.Key]model.PrivilegeRecord{}}
}

func (f *fakeStore) LoadPrivilegeStates(context.Context) ([]model.PrivilegeRecord, error) {
	var out []model.PrivilegeRecord
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) SavePrivilegeState(_ context.Context, r model.PrivilegeRecord) error {
	if f.failing {
		return errors.New("disk full")
	}
	f.records[r.Key] = r
	return nil
}

func (f *fakeStore) DeletePrivilegeState(_ context.Context, key model.Key) error {
	delete(f.records, key)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	reg    *registry.Registry
	store  *fakeStore
	clock  *clock
	engine *Engine
}

var (
	bobDishes = model.Key{Assignee: "bob", Slug: "dishes"}
	bobTV     = model.Key{Assignee: "bob", Slug: "tv"}
	bobPark   = model.Key{Assignee: "bob", Slug: "park"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New()
	reg.ApplySnapshot(&model.Snapshot{
		Chores: []model.ChoreDefinition{
			{Name: "Dishes", Slug: "dishes", Frequency: model.FrequencyDaily, Assignees: []string{"bob"}, Points: 10},
		},
		Privileges: []model.PrivilegeDefinition{
			{Name: "TV", Slug: "tv", Behavior: model.BehaviorAutomatic, LinkedChores: []string{"dishes"}, Assignees: []string{"bob"}},
			{Name: "Park", Slug: "park", Behavior: model.BehaviorManual, Assignees: []string{"bob"}},
		},
	})
	store := newFakeStore()
	c := &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		reg:    reg,
		store:  store,
		clock:  c,
		engine: NewEngine(reg, store, logger, WithClock(c.Now)),
	}
}

func (f *fixture) state(t *testing.T, key model.Key) model.PrivilegeState {
	t.Helper()
	st, err := f.engine.State(context.Background(), key)
	require.NoError(t, err)
	return st.State
}

func TestAutomaticDerivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, model.PrivilegeDisabled, f.state(t, bobTV))

	_, err := f.reg.SetChoreState(bobDishes, model.ChoreComplete)
	require.NoError(t, err)
	changed, err := f.engine.Evaluate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []model.Key{bobTV}, changed, "manual privilege is not derived")
	assert.Equal(t, model.PrivilegeEnabled, f.state(t, bobTV))
	assert.Equal(t, model.PrivilegeEnabled, f.store.records[bobTV].State)

	_, err = f.reg.SetChoreState(bobDishes, model.ChorePending)
	require.NoError(t, err)
	_, err = f.engine.Evaluate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeDisabled, f.state(t, bobTV))
	assert.Equal(t, model.PrivilegeDisabled, f.state(t, bobPark))
}

func TestManualOverrideHoldsUntilChoreChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Enable(ctx, bobTV))
	assert.Equal(t, model.PrivilegeEnabled, f.state(t, bobTV), "reads do not re-derive")

	_, err := f.engine.Evaluate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeDisabled, f.state(t, bobTV))
}

func TestTemporaryDisable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.TemporarilyDisable(ctx, bobPark, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.engine.TemporarilyDisable(ctx, bobPark, -time.Minute)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, model.PrivilegeDisabled, f.state(t, bobPark), "rejected before mutation")

	require.NoError(t, f.engine.Enable(ctx, bobPark))
	until, err := f.engine.TemporarilyDisable(ctx, bobPark, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, f.clock.t.Add(30*time.Minute), until)

	st, err := f.engine.State(ctx, bobPark)
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeTemporarilyDisabled, st.State)
	require.NotNil(t, st.DisableUntil)
	assert.Equal(t, until, *st.DisableUntil)

	f.clock.Advance(29 * time.Minute)
	assert.Equal(t, model.PrivilegeTemporarilyDisabled, f.state(t, bobPark))

	f.clock.Advance(time.Minute)
	assert.Equal(t, model.PrivilegeEnabled, f.state(t, bobPark), "manual privilege comes back enabled")
	assert.Nil(t, f.store.records[bobPark].DisableUntil)
}

func TestTemporaryDisableExpiryReDerivesAutomatic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reg.SetChoreState(bobDishes, model.ChoreComplete)
	require.NoError(t, err)
	_, err = f.engine.TemporarilyDisable(ctx, bobTV, time.Hour)
	require.NoError(t, err)

	_, err = f.engine.Evaluate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeTemporarilyDisabled, f.state(t, bobTV), "chore change does not cut a running timer")

	f.clock.Advance(2 * time.Hour)
	assert.Equal(t, model.PrivilegeEnabled, f.state(t, bobTV))
}

func TestEnableClearsTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.TemporarilyDisable(ctx, bobTV, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.engine.Disable(ctx, bobTV))

	st, err := f.engine.State(ctx, bobTV)
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeDisabled, st.State)
	assert.Nil(t, st.DisableUntil)
}

func TestAdjustTemporaryDisable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AdjustTemporaryDisable(ctx, bobTV, time.Minute)
	assert.ErrorIs(t, err, model.ErrValidation, "not temporarily disabled")

	until, err := f.engine.TemporarilyDisable(ctx, bobTV, time.Hour)
	require.NoError(t, err)

	st, err := f.engine.AdjustTemporaryDisable(ctx, bobTV, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeTemporarilyDisabled, st.State)
	assert.Equal(t, until.Add(15*time.Minute), *st.DisableUntil)

	_, err = f.reg.SetChoreState(bobDishes, model.ChoreComplete)
	require.NoError(t, err)
	st, err = f.engine.AdjustTemporaryDisable(ctx, bobTV, -2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeEnabled, st.State, "deadline in the past re-evaluates immediately")
	assert.Nil(t, st.DisableUntil)
}

func TestUnknownPrivilege(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Enable(context.Background(), model.Key{Assignee: "alice", Slug: "tv"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorContains(t, err, `privilege "tv" not found for assignee "alice"`)
}

func TestFailedWriteLeavesState(t *testing.T) {
	f := newFixture(t)
	f.store.failing = true
	require.Error(t, f.engine.Enable(context.Background(), bobPark))
	p, _ := f.reg.Privilege(bobPark)
	assert.Equal(t, model.PrivilegeDisabled, p.State)
}

func TestRestoreAndForget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	until := f.clock.t.Add(time.Hour)
	f.store.records[bobTV] = model.PrivilegeRecord{Key: bobTV, State: model.PrivilegeTemporarilyDisabled, DisableUntil: &until}
	f.store.records[model.Key{Assignee: "zed", Slug: "tv"}] = model.PrivilegeRecord{State: model.PrivilegeEnabled}

	fresh, err := f.engine.Restore(ctx, f.reg.Privileges())
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, bobPark, fresh[0].Key)

	st, err := f.engine.State(ctx, bobTV)
	require.NoError(t, err)
	assert.Equal(t, model.PrivilegeTemporarilyDisabled, st.State)

	p, _ := f.reg.Privilege(bobTV)
	require.NoError(t, f.engine.Forget(ctx, []*registry.Privilege{p}))
	_, ok := f.store.records[bobTV]
	assert.False(t, ok)
}
