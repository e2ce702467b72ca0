package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"spendwise/internal/models"
)

// SortBy selects the ordering field of a Query.
type SortBy string

const (
	SortByDate     SortBy = "date"
	SortByAmount   SortBy = "amount"
	SortByCategory SortBy = "category"
)

// IsValid reports whether s is a known sort field.
func (s SortBy) IsValid() bool {
	switch s {
	case SortByDate, SortByAmount, SortByCategory:
		return true
	}
	return false
}

// Order is the sort direction of a Query.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// IsValid reports whether o is a known direction.
func (o Order) IsValid() bool {
	return o == Asc || o == Desc
}

// Query is the filter and ordering of the expense list. The zero Query
// keeps everything, newest first.
type Query struct {
	// Search matches descriptions case-insensitively.
	Search string
	// Category keeps only exact matches when set.
	Category string
	SortBy   SortBy
	Order    Order
}

// Apply returns the expenses of xs matching q, ordered by q. xs is not modified.
func (q Query) Apply(xs []models.Expense) []models.Expense {
	needle := strings.ToLower(q.Search)
	out := make([]models.Expense, 0, len(xs))
	for _, e := range xs {
		if needle != "" && !strings.Contains(strings.ToLower(e.Description), needle) {
			continue
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		out = append(out, e)
	}

	var less func(a, b models.Expense) bool
	switch q.SortBy {
	case SortByAmount:
		less = func(a, b models.Expense) bool { return a.Amount.LessThan(b.Amount) }
	case SortByCategory:
		less = func(a, b models.Expense) bool { return a.Category < b.Category }
	default:
		less = func(a, b models.Expense) bool { return a.Date < b.Date }
	}
	asc := q.Order == Asc
	sort.SliceStable(out, func(i, j int) bool {
		if asc {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

// Period is a predefined report range.
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// IsValid reports whether p is a known period.
func (p Period) IsValid() bool {
	switch p {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return true
	}
	return false
}

// Range is an inclusive span of calendar dates.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange returns the inclusive range between two YYYY-MM-DD dates.
func NewRange(start, end string) (Range, error) {
	s, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return Range{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return Range{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if e.Before(s) {
		return Range{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return Range{Start: s, End: e}, nil
}

// Contains reports whether the calendar date d lies in r.
func (r Range) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s to %s", r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout))
}

// PeriodRange returns the range of p ending with the month of now: the
// current month, the last 3 months or the last 12 months. Unknown periods
// fall back to the current month.
func PeriodRange(p Period, now time.Time) Range {
	back := 0
	switch p {
	case PeriodQuarter:
		back = 2
	case PeriodYear:
		back = 11
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Range{
		Start: first.AddDate(0, -back, 0),
		End:   first.AddDate(0, 1, -1),
	}
}

// InRange keeps the expenses dated within r. Expenses with unparseable
// dates are dropped.
func InRange(xs []models.Expense, r Range) []models.Expense {
	var out []models.Expense
	for _, e := range xs {
		t := e.Time()
		if t.IsZero() {
			continue
		}
		if r.Contains(t) {
			out = append(out, e)
		}
	}
	return out
}
