package services

import (
	"context"
	"fmt"
	"log/slog"

	"durood/internal/amqp"
	"durood/internal/core"
	"durood/internal/log"
	"durood/internal/metrics"
	"durood/internal/tally"
)

// EventPublisher delivers counter events. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt *amqp.CounterEvent) error
	Close() error
}

// CounterService orchestrates counter operations across the store, AMQP
// and metrics. Input is validated here before it reaches the store.
type CounterService struct {
	store     *tally.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewCounterService opens the store on p and subscribes the service to its
// changes. publisher and m may be nil.
func NewCounterService(ctx context.Context, p tally.Persister, publisher EventPublisher, m *metrics.Metrics, opts tally.Options) (*CounterService, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &CounterService{
		publisher: publisher,
		metrics:   m,
		logger:    logger.With(log.FieldComponent, log.ComponentCounter),
	}

	opts.Observer = s
	store, err := tally.Open(ctx, p, opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.store = store
	s.observeState(store.Snapshot())
	return s, nil
}

func (s *CounterService) Store() *tally.Store {
	return s.store
}

// Add validates count and records it.
func (s *CounterService) Add(ctx context.Context, count int64) (core.Entry, error) {
	if err := core.ValidateCount(count); err != nil {
		return core.Entry{}, err
	}
	return s.store.Add(ctx, count), nil
}

// Edit validates newCount and applies it to the entry. found is false when
// the id is not part of the current day.
func (s *CounterService) Edit(ctx context.Context, id string, newCount int64) (core.Entry, bool, error) {
	if err := core.ValidateCount(newCount); err != nil {
		return core.Entry{}, false, err
	}
	e, found := s.store.Edit(ctx, id, newCount)
	if !found && s.metrics != nil {
		s.metrics.EntriesEdited.WithLabelValues("not_found").Inc()
	}
	return e, found, nil
}

func (s *CounterService) Reset(ctx context.Context) {
	s.store.Reset(ctx)
}

func (s *CounterService) CheckAndResetDaily(ctx context.Context) bool {
	return s.store.CheckAndResetDaily(ctx)
}

func (s *CounterService) Snapshot() core.State {
	return s.store.Snapshot()
}

// Days builds the daily history view for the current business date.
func (s *CounterService) Days(q core.DayQuery) core.DaySummary {
	return core.SummarizeDays(s.store.Snapshot(), s.store.Today(), q)
}

// EntryAdded implements tally.Observer.
func (s *CounterService) EntryAdded(ctx context.Context, e core.Entry, st core.State) {
	if s.metrics != nil {
		s.metrics.EntriesAdded.Inc()
		s.metrics.DuroodAdded.Add(float64(e.Count))
	}
	s.observeState(st)

	evt := s.newEvent(amqp.EventEntryAdded, st)
	evt.EntryID = e.ID
	evt.Count = e.Count
	s.publish(ctx, evt)
}

// EntryEdited implements tally.Observer.
func (s *CounterService) EntryEdited(ctx context.Context, e core.Entry, delta int64, st core.State) {
	if s.metrics != nil {
		s.metrics.EntriesEdited.WithLabelValues("updated").Inc()
	}
	s.observeState(st)

	evt := s.newEvent(amqp.EventEntryEdited, st)
	evt.EntryID = e.ID
	evt.Count = e.Count
	evt.Delta = delta
	s.publish(ctx, evt)
}

// DayClosed implements tally.Observer.
func (s *CounterService) DayClosed(ctx context.Context, closed core.DailyTotal, st core.State) {
	if s.metrics != nil {
		s.metrics.DaysClosed.Inc()
	}
	s.observeState(st)

	evt := s.newEvent(amqp.EventDayClosed, st)
	evt.ClosedDate = closed.Date.String()
	evt.ClosedTotal = closed.Total
	s.publish(ctx, evt)
}

// StateReset implements tally.Observer.
func (s *CounterService) StateReset(ctx context.Context, st core.State) {
	if s.metrics != nil {
		s.metrics.Resets.Inc()
	}
	s.observeState(st)
	s.publish(ctx, s.newEvent(amqp.EventReset, st))
}

func (s *CounterService) newEvent(t amqp.EventType, st core.State) *amqp.CounterEvent {
	evt := amqp.NewCounterEvent(t)
	evt.BusinessDate = st.LastResetDate.String()
	evt.TotalCount = st.TotalCount
	evt.LifetimeTotal = st.LifetimeTotal
	return evt
}

// publish never fails the caller: state is already saved locally.
func (s *CounterService) publish(ctx context.Context, evt *amqp.CounterEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping event", log.FieldEvent, evt.Type)
		return
	}
	if err := s.publisher.PublishEvent(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish counter event",
			log.FieldEvent, evt.Type,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(string(evt.Type)).Inc()
		}
	}
}

func (s *CounterService) observeState(st core.State) {
	if s.metrics != nil {
		s.metrics.ObserveState(st)
	}
}

// Close flushes the store and closes the publisher. The persister is owned
// by whoever created it.
func (s *CounterService) Close(ctx context.Context) error {
	if s.store != nil {
		s.store.Flush(ctx)
	}
	return s.Release()
}

// Release closes the publisher without flushing. Read-only callers use it so
// their snapshot never overwrites state written by another process.
func (s *CounterService) Release() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close counter service: amqp: %w", err)
		}
	}
	return nil
}
