package http

import (
	"errors"
	"net/http"
	"time"

	"durood/internal/core"
	"durood/internal/log"
)

type entryView struct {
	ID          string    `json:"id"`
	Count       int64     `json:"count"`
	Timestamp   time.Time `json:"timestamp"`
	DisplayTime string    `json:"displayTime"`
}

type counterView struct {
	BusinessDate  core.Date `json:"businessDate"`
	DisplayDate   string    `json:"displayDate"`
	TotalCount    int64     `json:"totalCount"`
	LifetimeTotal int64     `json:"lifetimeTotal"`
	Entries       int       `json:"entries"`
	ClosedDays    int       `json:"closedDays"`
	Now           string    `json:"now"`
	CutoffHour    int       `json:"cutoffHour"`
	UTCOffset     string    `json:"utcOffset"`
	QuickAdd      []int64   `json:"quickAdd"`
}

type dayView struct {
	Date        core.Date `json:"date"`
	DisplayDate string    `json:"displayDate"`
	Total       int64     `json:"total"`
	IsToday     bool      `json:"isToday"`
}

type daysView struct {
	Range   core.DayRange  `json:"range"`
	Sort    core.DaySort   `json:"sort"`
	Order   core.SortOrder `json:"order"`
	Rows    []dayView      `json:"rows"`
	Days    int            `json:"days"`
	Highest int64          `json:"highest"`
	Average int64          `json:"average"`
}

type mutationView struct {
	Entry         *entryView `json:"entry,omitempty"`
	Updated       *bool      `json:"updated,omitempty"`
	TotalCount    int64      `json:"totalCount"`
	LifetimeTotal int64      `json:"lifetimeTotal"`
	BusinessDate  core.Date  `json:"businessDate"`
}

func (s *Server) toEntryView(e core.Entry) entryView {
	return entryView{
		ID:          e.ID,
		Count:       e.Count,
		Timestamp:   e.Timestamp,
		DisplayTime: core.FormatEntryTimestamp(e.Timestamp, s.counter.Store().Policy().Location()),
	}
}

func (s *Server) mutation(e *core.Entry, updated *bool) mutationView {
	st := s.counter.Snapshot()
	v := mutationView{
		Updated:       updated,
		TotalCount:    st.TotalCount,
		LifetimeTotal: st.LifetimeTotal,
		BusinessDate:  st.LastResetDate,
	}
	if e != nil {
		ev := s.toEntryView(*e)
		v.Entry = &ev
	}
	return v
}

func (s *Server) handleCounter(w http.ResponseWriter, r *http.Request) {
	// Reads see the current business day even between ticks.
	s.counter.CheckAndResetDaily(r.Context())

	st := s.counter.Snapshot()
	store := s.counter.Store()
	policy := store.Policy()
	NewJSONResponse().Body(counterView{
		BusinessDate:  st.LastResetDate,
		DisplayDate:   core.FormatDailyDate(st.LastResetDate),
		TotalCount:    st.TotalCount,
		LifetimeTotal: st.LifetimeTotal,
		Entries:       len(st.History),
		ClosedDays:    len(st.DailyTotals),
		Now:           core.FormatEntryTimestamp(store.Now(), policy.Location()),
		CutoffHour:    policy.CutoffHour,
		UTCOffset:     core.FormatUTCOffset(policy.Offset),
		QuickAdd:      core.QuickAddCounts,
	}).Write(w)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	s.counter.CheckAndResetDaily(r.Context())

	history := s.counter.Snapshot().History
	views := make([]entryView, 0, len(history))
	for _, e := range history {
		views = append(views, s.toEntryView(e))
	}
	NewJSONResponse().Body(views).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := ParseCountRequest(r)
	if err != nil {
		writeCountError(w, r, err)
		return
	}

	e, err := s.counter.Add(ctx, count)
	if err != nil {
		writeCountError(w, r, err)
		return
	}

	v := s.mutation(&e, nil)
	log.NewStructuredLogger(log.FromContext(ctx)).LogEntryAdded(ctx, e.ID, e.Count, v.TotalCount, v.LifetimeTotal)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/entries/"+e.ID).
		Body(v).
		Write(w)
}

func (s *Server) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		BadRequestError("missing entry id").Write(w)
		return
	}

	count, err := ParseCountRequest(r)
	if err != nil {
		writeCountError(w, r, err)
		return
	}

	e, found, err := s.counter.Edit(ctx, id, count)
	if err != nil {
		writeCountError(w, r, err)
		return
	}

	var entry *core.Entry
	if found {
		entry = &e
	} else {
		log.FromContext(ctx).InfoContext(ctx, "Edit ignored, entry not in current day",
			log.FieldEntryID, id,
			log.FieldOperation, log.OpEdit)
	}
	NewJSONResponse().Body(s.mutation(entry, &found)).Write(w)
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	s.counter.CheckAndResetDaily(r.Context())

	q := ParseDayQueryParams(r.URL.Query())
	sum := s.counter.Days(q)

	rows := make([]dayView, 0, len(sum.Rows))
	for _, row := range sum.Rows {
		rows = append(rows, dayView{
			Date:        row.Date,
			DisplayDate: core.FormatDailyDate(row.Date),
			Total:       row.Total,
			IsToday:     row.IsToday,
		})
	}
	NewJSONResponse().Body(daysView{
		Range:   q.Range,
		Sort:    q.Sort,
		Order:   q.Order,
		Rows:    rows,
		Days:    sum.Days,
		Highest: sum.Highest,
		Average: sum.Average,
	}).Write(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.counter.Reset(ctx)
	log.FromContext(ctx).WarnContext(ctx, "Counter reset via API",
		log.FieldOperation, log.OpReset,
		log.FieldClientIP, extractClientIP(r))
	NewJSONResponse().Body(s.mutation(nil, nil)).Write(w)
}

func writeCountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidCount):
		UnprocessableEntityError("count must be a whole number between 1 and 1000000000").Write(w)
	case errors.Is(err, errMalformedBody):
		BadRequestError("malformed request body").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Unexpected request error",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal)
		ErrorResponse(http.StatusInternalServerError, "internal error").Write(w)
	}
}
