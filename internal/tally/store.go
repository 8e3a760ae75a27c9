// Package tally owns the counter state: the open business day, its entries,
// the closed-day history and the lifetime accumulator.
//
// Callers must validate counts before calling Add or Edit. The store accepts
// whatever it is given so that the aggregates always reflect exactly what
// the boundary let through.
package tally

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"durood/internal/core"
	"durood/internal/log"
)

// Persister loads and saves the whole state blob.
type Persister interface {
	// Load returns nil, nil when nothing has been persisted yet.
	Load(ctx context.Context) (*core.State, error)
	Save(ctx context.Context, s core.State) error
}

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Observer is notified after each state change, with the store lock released.
type Observer interface {
	EntryAdded(ctx context.Context, e core.Entry, s core.State)
	EntryEdited(ctx context.Context, e core.Entry, delta int64, s core.State)
	DayClosed(ctx context.Context, closed core.DailyTotal, s core.State)
	StateReset(ctx context.Context, s core.State)
}

// Options configures a Store. Zero values select defaults; a nil Policy
// selects core.DefaultDayPolicy.
type Options struct {
	Policy   *core.DayPolicy
	Clock    Clock
	NewID    func() string
	Logger   *slog.Logger
	Observer Observer
}

// Store is the single owner of the aggregate state. Operations are
// serialised so each runs to completion before the next starts.
type Store struct {
	mu       sync.Mutex
	state    core.State
	persist  Persister
	policy   core.DayPolicy
	now      Clock
	newID    func() string
	logger   *slog.Logger
	observer Observer
}

// Open hydrates a store from p, or starts empty when nothing was persisted,
// and runs one rollover check before returning.
func Open(ctx context.Context, p Persister, opts Options) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("persister is nil")
	}
	s := &Store{
		persist:  p,
		policy:   core.DefaultDayPolicy,
		now:      opts.Clock,
		newID:    opts.NewID,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	if opts.Policy != nil {
		s.policy = *opts.Policy
	}
	if err := s.policy.Validate(); err != nil {
		return nil, fmt.Errorf("day policy: %w", err)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(log.FieldComponent, log.ComponentStore)

	loaded, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if loaded == nil {
		s.state = core.NewState(s.today())
		s.logger.InfoContext(ctx, "No persisted state found, starting fresh",
			log.FieldBusinessDate, s.state.LastResetDate.String())
		s.save(ctx)
	} else {
		if err := loaded.Validate(); err != nil {
			return nil, fmt.Errorf("persisted state: %w", err)
		}
		s.state = loaded.Clone()
		if !s.state.Consistent() {
			s.logger.WarnContext(ctx, "Persisted total does not match entries",
				log.FieldTotalCount, s.state.TotalCount,
				"history_sum", s.state.HistorySum())
		}
		if neg := s.state.NegativeDays(); len(neg) > 0 {
			s.logger.WarnContext(ctx, "Persisted state has negative closed days",
				"negative_days", len(neg),
				"first", neg[0].String())
		}
		s.logger.InfoContext(ctx, "Hydrated persisted state",
			log.FieldBusinessDate, s.state.LastResetDate.String(),
			log.FieldTotalCount, s.state.TotalCount,
			log.FieldLifetimeTotal, s.state.LifetimeTotal,
			"closed_days", len(s.state.DailyTotals))
	}

	s.CheckAndResetDaily(ctx)
	return s, nil
}

// CheckAndResetDaily closes the open bucket when the business date has
// moved on. A closed day is recorded even when its total is zero. After a
// long idle gap only one record is written, for the stale date; skipped
// days get none. Reports whether a rollover happened.
func (s *Store) CheckAndResetDaily(ctx context.Context) bool {
	s.mu.Lock()
	closed, rolled := s.rollover(ctx)
	var snap core.State
	if rolled {
		s.save(ctx)
		snap = s.state.Clone()
	}
	s.mu.Unlock()

	if rolled && s.observer != nil {
		s.observer.DayClosed(ctx, closed, snap)
	}
	return rolled
}

// Add records count as a new entry in the current business day and returns it.
func (s *Store) Add(ctx context.Context, count int64) core.Entry {
	s.mu.Lock()
	closed, rolled := s.rollover(ctx)

	e := core.Entry{
		ID:        s.newID(),
		Count:     count,
		Timestamp: s.now(),
	}
	s.state.History = append([]core.Entry{e}, s.state.History...)
	s.state.TotalCount += count
	s.state.LifetimeTotal += count
	s.save(ctx)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Entry added",
		log.FieldEntryID, e.ID,
		log.FieldCount, count,
		log.FieldTotalCount, snap.TotalCount)

	if s.observer != nil {
		if rolled {
			s.observer.DayClosed(ctx, closed, snap)
		}
		s.observer.EntryAdded(ctx, e, snap)
	}
	return e
}

// Edit replaces the count of an entry in the current business day and
// applies the difference to the daily and lifetime totals. An unknown id
// leaves the state untouched and reports found=false.
func (s *Store) Edit(ctx context.Context, id string, newCount int64) (core.Entry, bool) {
	s.mu.Lock()
	closed, rolled := s.rollover(ctx)

	idx := -1
	for i, e := range s.state.History {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		var snap core.State
		if rolled {
			s.save(ctx)
			snap = s.state.Clone()
		}
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Edit ignored, entry not in current day", log.FieldEntryID, id)
		if rolled && s.observer != nil {
			s.observer.DayClosed(ctx, closed, snap)
		}
		return core.Entry{}, false
	}

	delta := newCount - s.state.History[idx].Count
	s.state.History[idx].Count = newCount
	s.state.TotalCount += delta
	s.state.LifetimeTotal += delta
	s.save(ctx)
	edited := s.state.History[idx]
	snap := s.state.Clone()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Entry edited",
		log.FieldEntryID, id,
		log.FieldCount, newCount,
		log.FieldDelta, delta)

	if s.observer != nil {
		if rolled {
			s.observer.DayClosed(ctx, closed, snap)
		}
		s.observer.EntryEdited(ctx, edited, delta, snap)
	}
	return edited, true
}

// Reset clears the current day and all closed days. The lifetime total is kept.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	lifetime := s.state.LifetimeTotal
	s.state = core.NewState(s.today())
	s.state.LifetimeTotal = lifetime
	s.save(ctx)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Counter reset",
		log.FieldBusinessDate, snap.LastResetDate.String(),
		log.FieldLifetimeTotal, lifetime)

	if s.observer != nil {
		s.observer.StateReset(ctx, snap)
	}
}

// Flush persists the current state. Used on shutdown.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(ctx)
}

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() core.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Store) TotalCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TotalCount
}

func (s *Store) LifetimeTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LifetimeTotal
}

// History returns the current day's entries, newest first.
func (s *Store) History() []core.Entry {
	return s.Snapshot().History
}

// DailyTotals returns the closed days, newest first.
func (s *Store) DailyTotals() []core.DailyTotal {
	return s.Snapshot().DailyTotals
}

// Today is the business date of the current wall-clock time.
func (s *Store) Today() core.Date {
	return s.today()
}

// Now reads the store's clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// Policy returns the business-day policy in effect.
func (s *Store) Policy() core.DayPolicy {
	return s.policy
}

func (s *Store) today() core.Date {
	return s.policy.BusinessDate(s.now())
}

// rollover must be called with s.mu held. It does not persist.
func (s *Store) rollover(ctx context.Context) (core.DailyTotal, bool) {
	today := s.today()
	if today.SameDay(s.state.LastResetDate) {
		return core.DailyTotal{}, false
	}

	closed := core.DailyTotal{Date: s.state.LastResetDate, Total: s.state.TotalCount}
	s.state.DailyTotals = append([]core.DailyTotal{closed}, s.state.DailyTotals...)
	s.state.TotalCount = 0
	s.state.History = []core.Entry{}
	s.state.LastResetDate = today

	s.logger.InfoContext(ctx, "Business day closed",
		log.FieldBusinessDate, closed.Date.String(),
		log.FieldTotalCount, closed.Total,
		"new_business_date", today.String())
	return closed, true
}

// save must be called with s.mu held. Failures are logged and the in-memory
// state is kept as is.
func (s *Store) save(ctx context.Context) {
	if err := s.persist.Save(ctx, s.state.Clone()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist state",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase)
	}
}
