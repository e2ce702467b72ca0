// Package report derives the dashboard, list and report views from a user's
// expenses. Every function is pure and works on a slice such as the one
// returned by expense.Store.List.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/models"
)

// NoCategory is reported by TopCategory when there is nothing to rank.
const NoCategory = "None"

// DefaultRecent is the number of expenses the dashboard lists.
const DefaultRecent = 5

// DefaultSummaryMonths is the number of months in the dashboard summary.
const DefaultSummaryMonths = 3

var hundred = decimal.NewFromInt(100)

// Total sums the amounts of xs.
func Total(xs []models.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range xs {
		total = total.Add(e.Amount)
	}
	return total
}

// Average returns the mean amount of xs rounded to cents, or zero when xs is empty.
func Average(xs []models.Expense) decimal.Decimal {
	if len(xs) == 0 {
		return decimal.Zero
	}
	return Total(xs).DivRound(decimal.NewFromInt(int64(len(xs))), 2)
}

// Recent returns up to n expenses, newest date first.
func Recent(xs []models.Expense, n int) []models.Expense {
	out := append([]models.Expense(nil), xs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MonthTotal sums the expenses dated in the given calendar month.
func MonthTotal(xs []models.Expense, year int, month time.Month) decimal.Decimal {
	total := decimal.Zero
	for _, e := range xs {
		t := e.Time()
		if t.Year() == year && t.Month() == month {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// MonthSummary is the total of one calendar month.
type MonthSummary struct {
	Year  int
	Month time.Month
	Total decimal.Decimal
}

// Label formats the month as "March 2024".
func (m MonthSummary) Label() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// MonthlySummary returns totals for the month of now and the months-1
// months before it, most recent first.
func MonthlySummary(xs []models.Expense, now time.Time, months int) []MonthSummary {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]MonthSummary, 0, months)
	for i := 0; i < months; i++ {
		d := first.AddDate(0, -i, 0)
		out = append(out, MonthSummary{
			Year:  d.Year(),
			Month: d.Month(),
			Total: MonthTotal(xs, d.Year(), d.Month()),
		})
	}
	return out
}

// TopCategory returns the category with the largest total. Ties go to the
// alphabetically first category. With no positive totals it returns
// NoCategory and zero.
func TopCategory(xs []models.Expense) (string, decimal.Decimal) {
	totals := categoryTotals(xs)
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestTotal := NoCategory, decimal.Zero
	for _, name := range names {
		if totals[name].GreaterThan(bestTotal) {
			best, bestTotal = name, totals[name]
		}
	}
	return best, bestTotal
}

// CategoryStat is one row of the category breakdown.
type CategoryStat struct {
	Category   string
	Total      decimal.Decimal
	Count      int
	Percentage decimal.Decimal
}

// Breakdown groups xs by category, largest total first. Percentage is the
// share of the overall total, rounded to one decimal place.
func Breakdown(xs []models.Expense) []CategoryStat {
	byName := make(map[string]*CategoryStat)
	var order []string
	total := decimal.Zero
	for _, e := range xs {
		st, ok := byName[e.Category]
		if !ok {
			st = &CategoryStat{Category: e.Category, Total: decimal.Zero}
			byName[e.Category] = st
			order = append(order, e.Category)
		}
		st.Total = st.Total.Add(e.Amount)
		st.Count++
		total = total.Add(e.Amount)
	}

	stats := make([]CategoryStat, 0, len(order))
	for _, name := range order {
		st := *byName[name]
		st.Percentage = decimal.Zero
		if total.IsPositive() {
			st.Percentage = st.Total.Mul(hundred).DivRound(total, 1)
		}
		stats = append(stats, st)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if c := stats[i].Total.Cmp(stats[j].Total); c != 0 {
			return c > 0
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}

// DayTotal is the total of one calendar day.
type DayTotal struct {
	Date  string
	Total decimal.Decimal
}

// ByDate sums xs per day, oldest first.
func ByDate(xs []models.Expense) []DayTotal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range xs {
		totals[e.Date] = totals[e.Date].Add(e.Amount)
	}
	days := make([]DayTotal, 0, len(totals))
	for date, total := range totals {
		days = append(days, DayTotal{Date: date, Total: total})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// Summary is the dashboard view of a user's expenses.
type Summary struct {
	Total       decimal.Decimal
	Count       int
	Average     decimal.Decimal
	ThisMonth   decimal.Decimal
	TopCategory string
	TopTotal    decimal.Decimal
	Recent      []models.Expense
	Months      []MonthSummary
}

// Summarize builds the dashboard view as of now.
func Summarize(xs []models.Expense, now time.Time) Summary {
	top, topTotal := TopCategory(xs)
	return Summary{
		Total:       Total(xs),
		Count:       len(xs),
		Average:     Average(xs),
		ThisMonth:   MonthTotal(xs, now.Year(), now.Month()),
		TopCategory: top,
		TopTotal:    topTotal,
		Recent:      Recent(xs, DefaultRecent),
		Months:      MonthlySummary(xs, now, DefaultSummaryMonths),
	}
}

func categoryTotals(xs []models.Expense) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range xs {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	return totals
}
