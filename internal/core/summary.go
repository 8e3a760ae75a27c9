package core

import (
	"math"
	"sort"
	"strings"
)

type (
	// DayRange limits the daily history view to recent days.
	DayRange string
	// DaySort selects the ordering key of the daily history view.
	DaySort string
	// SortOrder is asc or desc.
	SortOrder string
)

const (
	RangeWeek  DayRange = "7days"
	RangeMonth DayRange = "30days"
	RangeAll   DayRange = "all"

	SortByDate  DaySort = "date"
	SortByCount DaySort = "count"

	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// DayQuery describes how the daily history view is filtered and sorted.
type DayQuery struct {
	Range DayRange
	Sort  DaySort
	Order SortOrder
}

// DefaultDayQuery shows every day, newest first.
var DefaultDayQuery = DayQuery{Range: RangeAll, Sort: SortByDate, Order: Descending}

// DayRow is one line of the daily history view.
type DayRow struct {
	Date    Date  `json:"date"`
	Total   int64 `json:"total"`
	IsToday bool  `json:"isToday"`
}

// DaySummary is the daily history view plus its statistics.
type DaySummary struct {
	Rows    []DayRow `json:"rows"`
	Days    int      `json:"days"`
	Highest int64    `json:"highest"`
	Average int64    `json:"average"` // rounded half away from zero
}

// ParseDayQuery reads the string form used by query parameters and flags.
// Unknown or empty values fall back to DefaultDayQuery.
func ParseDayQuery(rng, sortBy, order string) DayQuery {
	q := DefaultDayQuery
	switch DayRange(strings.ToLower(strings.TrimSpace(rng))) {
	case RangeWeek:
		q.Range = RangeWeek
	case RangeMonth:
		q.Range = RangeMonth
	}
	if DaySort(strings.ToLower(strings.TrimSpace(sortBy))) == SortByCount {
		q.Sort = SortByCount
	}
	if SortOrder(strings.ToLower(strings.TrimSpace(order))) == Ascending {
		q.Order = Ascending
	}
	return q
}

// SummarizeDays builds the daily history view from a state snapshot.
// The open bucket is listed as a row dated LastResetDate, followed by the
// closed days. today anchors the 7 and 30 day ranges.
func SummarizeDays(s State, today Date, q DayQuery) DaySummary {
	rows := make([]DayRow, 0, len(s.DailyTotals)+1)
	rows = append(rows, DayRow{Date: s.LastResetDate, Total: s.TotalCount, IsToday: true})
	for _, dt := range s.DailyTotals {
		rows = append(rows, DayRow{Date: dt.Date, Total: dt.Total})
	}

	if days := q.Range.days(); days > 0 {
		since := today.AddDays(-days)
		filtered := rows[:0]
		for _, r := range rows {
			if !r.Date.Before(since.Time) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if q.Order == Ascending {
			a, b = b, a
		}
		if q.Sort == SortByCount {
			return a.Total > b.Total
		}
		return a.Date.After(b.Date.Time)
	})

	summary := DaySummary{Rows: rows, Days: len(rows)}
	if len(rows) == 0 {
		return summary
	}
	var sum int64
	for i, r := range rows {
		sum += r.Total
		if i == 0 || r.Total > summary.Highest {
			summary.Highest = r.Total
		}
	}
	summary.Average = int64(math.Round(float64(sum) / float64(len(rows))))
	return summary
}

func (r DayRange) days() int {
	switch r {
	case RangeWeek:
		return 7
	case RangeMonth:
		return 30
	default:
		return 0
	}
}
