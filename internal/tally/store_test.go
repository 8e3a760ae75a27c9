package tally

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"durood/internal/core"
)

type memPersister struct {
	mu      sync.Mutex
	state   *core.State
	saves   int
	failing bool
}

func (m *memPersister) Load(context.Context) (*core.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	s := m.state.Clone()
	return &s, nil
}

func (m *memPersister) Save(_ context.Context, s core.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failing {
		return errors.New("disk full")
	}
	c := s.Clone()
	m.state = &c
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Set(t time.Time)         { c.t = t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingObserver struct {
	added  []core.Entry
	edited []int64
	closed []core.DailyTotal
	resets int
}

func (o *recordingObserver) EntryAdded(_ context.Context, e core.Entry, _ core.State) {
	o.added = append(o.added, e)
}
func (o *recordingObserver) EntryEdited(_ context.Context, _ core.Entry, delta int64, _ core.State) {
	o.edited = append(o.edited, delta)
}
func (o *recordingObserver) DayClosed(_ context.Context, d core.DailyTotal, _ core.State) {
	o.closed = append(o.closed, d)
}
func (o *recordingObserver) StateReset(context.Context, core.State) { o.resets++ }

// noon IST on the given date, well clear of the 06:00 cutoff
func istNoon(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 6, 30, 0, 0, time.UTC)
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func openStore(t *testing.T, p *memPersister, clock *fakeClock, obs Observer) *Store {
	t.Helper()
	s, err := Open(context.Background(), p, Options{Clock: clock.Now, NewID: seqIDs(), Observer: obs})
	require.NoError(t, err)
	return s
}

func TestOpenFreshState(t *testing.T) {
	p := &memPersister{}
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, p, clock, nil)

	snap := s.Snapshot()
	assert.Equal(t, core.SchemaVersion, snap.Version)
	assert.Equal(t, "2024-01-01", snap.LastResetDate.String())
	assert.Zero(t, snap.TotalCount)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.DailyTotals)
	require.NotNil(t, p.state, "fresh state should be persisted")
}

func TestOpenRejectsNilPersister(t *testing.T) {
	_, err := Open(context.Background(), nil, Options{})
	require.Error(t, err)
}

func TestOpenRejectsFutureVersion(t *testing.T) {
	st := core.NewState(core.NewDate(2024, 1, 1))
	st.Version = core.SchemaVersion + 1
	_, err := Open(context.Background(), &memPersister{state: &st}, Options{})
	require.ErrorIs(t, err, core.ErrUnsupportedVersion)
}

func TestOpenRollsOverStaleState(t *testing.T) {
	st := core.NewState(core.NewDate(2024, 1, 1))
	st.TotalCount = 42
	st.LifetimeTotal = 100
	st.History = []core.Entry{{ID: "a", Count: 42, Timestamp: istNoon(2024, 1, 1)}}
	p := &memPersister{state: &st}
	clock := &fakeClock{t: istNoon(2024, 1, 3)}

	s := openStore(t, p, clock, nil)

	snap := s.Snapshot()
	assert.Equal(t, []core.DailyTotal{{Date: core.NewDate(2024, 1, 1), Total: 42}}, snap.DailyTotals)
	assert.Zero(t, snap.TotalCount)
	assert.Empty(t, snap.History)
	assert.Equal(t, "2024-01-03", snap.LastResetDate.String())
	assert.Equal(t, int64(100), snap.LifetimeTotal)
	assert.Equal(t, "2024-01-03", p.state.LastResetDate.String(), "rollover should be persisted")
}

func TestAddUpdatesAggregates(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	ctx := context.Background()

	counts := []int64{1, 33, 100, 7}
	var sum int64
	for _, c := range counts {
		before := s.LifetimeTotal()
		clock.Advance(time.Minute)
		e := s.Add(ctx, c)
		sum += c
		assert.Equal(t, c, e.Count)
		assert.Equal(t, clock.Now(), e.Timestamp)
		assert.Equal(t, before+c, s.LifetimeTotal(), "lifetime grows by exactly the added count")
	}

	snap := s.Snapshot()
	assert.Equal(t, sum, snap.TotalCount)
	assert.Equal(t, sum, snap.LifetimeTotal)
	assert.True(t, snap.Consistent())
	require.Len(t, snap.History, 4)
	assert.Equal(t, "id-4", snap.History[0].ID, "newest entry first")
	assert.Equal(t, "id-1", snap.History[3].ID)
}

func TestAddDefaultIDsAreUnique(t *testing.T) {
	s, err := Open(context.Background(), &memPersister{}, Options{})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		e := s.Add(context.Background(), 1)
		require.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestAddRollsOverFirst(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	obs := &recordingObserver{}
	s := openStore(t, &memPersister{}, clock, obs)
	ctx := context.Background()

	s.Add(ctx, 10)
	clock.Set(istNoon(2024, 1, 2))
	e := s.Add(ctx, 5)

	snap := s.Snapshot()
	assert.Equal(t, int64(5), snap.TotalCount)
	assert.Equal(t, []core.Entry{e}, snap.History)
	assert.Equal(t, []core.DailyTotal{{Date: core.NewDate(2024, 1, 1), Total: 10}}, snap.DailyTotals)
	assert.Equal(t, int64(15), snap.LifetimeTotal)
	assert.Len(t, obs.closed, 1)
	assert.Len(t, obs.added, 2)
}

func TestEditPropagatesDelta(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	obs := &recordingObserver{}
	s := openStore(t, &memPersister{}, clock, obs)
	ctx := context.Background()

	e := s.Add(ctx, 5)
	s.Add(ctx, 2)
	before := s.Snapshot()

	clock.Advance(time.Hour)
	edited, found := s.Edit(ctx, e.ID, 8)
	require.True(t, found)

	after := s.Snapshot()
	assert.Equal(t, before.TotalCount+3, after.TotalCount)
	assert.Equal(t, before.LifetimeTotal+3, after.LifetimeTotal)
	assert.Equal(t, e.ID, edited.ID)
	assert.Equal(t, e.Timestamp, edited.Timestamp, "timestamp is immutable")
	assert.Equal(t, int64(8), edited.Count)
	assert.True(t, after.Consistent())
	assert.Equal(t, []int64{3}, obs.edited)
}

func TestEditCanDecreaseLifetime(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	ctx := context.Background()

	e := s.Add(ctx, 10)
	_, found := s.Edit(ctx, e.ID, 4)
	require.True(t, found)
	assert.Equal(t, int64(4), s.TotalCount())
	assert.Equal(t, int64(4), s.LifetimeTotal())
}

func TestEditDoesNotClamp(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	ctx := context.Background()

	e := s.Add(ctx, 3)
	_, found := s.Edit(ctx, e.ID, -2)
	require.True(t, found)
	assert.Equal(t, int64(-2), s.TotalCount())
	assert.Equal(t, int64(-2), s.LifetimeTotal())
	assert.True(t, s.Snapshot().Consistent())
}

func TestReopenAfterNegativeEditAndRollover(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	p := &memPersister{}
	s := openStore(t, p, clock, nil)
	ctx := context.Background()

	e := s.Add(ctx, 3)
	_, found := s.Edit(ctx, e.ID, -2)
	require.True(t, found)
	clock.Advance(24 * time.Hour)
	require.True(t, s.CheckAndResetDaily(ctx))

	reopened, err := Open(ctx, p, Options{Clock: clock.Now})
	require.NoError(t, err)
	days := reopened.DailyTotals()
	require.Len(t, days, 1)
	assert.Equal(t, "2024-01-01", days[0].Date.String())
	assert.Equal(t, int64(-2), days[0].Total)
	assert.Equal(t, int64(-2), reopened.LifetimeTotal())
}

func TestNowUsesInjectedClock(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	assert.True(t, s.Now().Equal(istNoon(2024, 1, 1)))
	clock.Advance(time.Hour)
	assert.True(t, s.Now().Equal(istNoon(2024, 1, 1).Add(time.Hour)))
}

func TestEditUnknownIDIsNoop(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	p := &memPersister{}
	obs := &recordingObserver{}
	s := openStore(t, p, clock, obs)
	ctx := context.Background()

	s.Add(ctx, 5)
	before := s.Snapshot()
	saves := p.saves

	_, found := s.Edit(ctx, "z", 10)
	assert.False(t, found)
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, saves, p.saves, "no-op edit does not persist")
	assert.Empty(t, obs.edited)
}

func TestEditAfterRolloverCannotReachOldEntries(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	p := &memPersister{}
	s := openStore(t, p, clock, nil)
	ctx := context.Background()

	e := s.Add(ctx, 5)
	clock.Set(istNoon(2024, 1, 2))

	_, found := s.Edit(ctx, e.ID, 50)
	assert.False(t, found)

	snap := s.Snapshot()
	assert.Equal(t, []core.DailyTotal{{Date: core.NewDate(2024, 1, 1), Total: 5}}, snap.DailyTotals)
	assert.Equal(t, int64(5), snap.LifetimeTotal)
	assert.Equal(t, "2024-01-02", p.state.LastResetDate.String(), "rollover is persisted even when the edit misses")
}

func TestCheckAndResetDaily(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	ctx := context.Background()

	s.Add(ctx, 42)
	assert.False(t, s.CheckAndResetDaily(ctx), "same business day is a no-op")

	clock.Set(istNoon(2024, 1, 3))
	assert.True(t, s.CheckAndResetDaily(ctx))
	first := s.Snapshot()

	assert.False(t, s.CheckAndResetDaily(ctx))
	assert.Equal(t, first, s.Snapshot(), "second call is idempotent")

	assert.Equal(t, []core.DailyTotal{{Date: core.NewDate(2024, 1, 1), Total: 42}}, first.DailyTotals,
		"skipped 2024-01-02 gets no record")
	assert.Zero(t, first.TotalCount)
	assert.Empty(t, first.History)
	assert.Equal(t, "2024-01-03", first.LastResetDate.String())
	assert.Equal(t, int64(42), first.LifetimeTotal)
}

func TestCheckAndResetDailyRecordsZeroDays(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	ctx := context.Background()

	clock.Set(istNoon(2024, 1, 2))
	require.True(t, s.CheckAndResetDaily(ctx))
	clock.Set(istNoon(2024, 1, 3))
	require.True(t, s.CheckAndResetDaily(ctx))

	assert.Equal(t, []core.DailyTotal{
		{Date: core.NewDate(2024, 1, 2), Total: 0},
		{Date: core.NewDate(2024, 1, 1), Total: 0},
	}, s.DailyTotals(), "newest first, zero days included")
}

func TestRolloverHonoursCutoff(t *testing.T) {
	// 05:59 IST on Jan 2 still belongs to Jan 1
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := openStore(t, &memPersister{}, clock, nil)
	ctx := context.Background()

	clock.Set(time.Date(2024, 1, 2, 0, 29, 0, 0, time.UTC))
	assert.False(t, s.CheckAndResetDaily(ctx))

	clock.Set(time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC))
	assert.True(t, s.CheckAndResetDaily(ctx))
}

func TestCustomPolicy(t *testing.T) {
	policy := core.DayPolicy{Offset: 0, CutoffHour: 0}
	clock := &fakeClock{t: time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)}
	s, err := Open(context.Background(), &memPersister{}, Options{Policy: &policy, Clock: clock.Now})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	assert.True(t, s.CheckAndResetDaily(context.Background()))
	assert.Equal(t, "2024-01-02", s.Today().String())
}

func TestResetKeepsLifetime(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	obs := &recordingObserver{}
	s := openStore(t, &memPersister{}, clock, obs)
	ctx := context.Background()

	s.Add(ctx, 10)
	clock.Set(istNoon(2024, 1, 2))
	s.Add(ctx, 7)

	s.Reset(ctx)

	snap := s.Snapshot()
	assert.Zero(t, snap.TotalCount)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.DailyTotals)
	assert.Equal(t, "2024-01-02", snap.LastResetDate.String())
	assert.Equal(t, int64(17), snap.LifetimeTotal)
	assert.Equal(t, 1, obs.resets)
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	p := &memPersister{}
	s := openStore(t, p, clock, nil)
	ctx := context.Background()

	p.failing = true
	s.Add(ctx, 9)

	assert.Equal(t, int64(9), s.TotalCount())
	assert.Zero(t, p.state.TotalCount, "persisted blob is stale after failure")

	p.failing = false
	s.Flush(ctx)
	assert.Equal(t, int64(9), p.state.TotalCount)
}

func TestSnapshotIsACopy(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	s.Add(context.Background(), 5)

	h := s.History()
	h[0].Count = 500
	assert.Equal(t, int64(5), s.History()[0].Count)
}

func TestSumInvariantUnderMixedOperations(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s := openStore(t, &memPersister{}, clock, nil)
	ctx := context.Background()

	var ids []string
	for i := int64(1); i <= 20; i++ {
		ids = append(ids, s.Add(ctx, i).ID)
		if i%3 == 0 {
			s.Edit(ctx, ids[len(ids)/2], i*2)
		}
		if i%7 == 0 {
			s.Edit(ctx, "missing", 1)
		}
		require.True(t, s.Snapshot().Consistent(), "after step %d", i)
	}
}

func TestConcurrentAdds(t *testing.T) {
	clock := &fakeClock{t: istNoon(2024, 1, 1)}
	s, err := Open(context.Background(), &memPersister{}, Options{Clock: clock.Now})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(context.Background(), 2)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, int64(100), snap.TotalCount)
	assert.Len(t, snap.History, 50)
	assert.True(t, snap.Consistent())
}
