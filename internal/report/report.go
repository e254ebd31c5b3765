// Package report derives dashboard metrics from stored expenses.
//
// All aggregation happens in memory over the expenses of one year (or all
// years for the all-time category ranking): every function is a one-shot
// computation over the records passed in, with no state of its own.
package report

import (
	"sort"
	"time"

	"spendtrack/internal/core"
)

// MonthlyTotal sums non-deleted expenses dated within the given month.
func MonthlyTotal(expenses []core.Expense, year, month int) core.Money {
	var cents int64
	for _, e := range expenses {
		if e.Status == core.StatusDeleted {
			continue
		}
		if e.Date.Year() == year && e.Date.Month() == month {
			cents += e.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// YearlyTotal sums non-deleted expenses dated within the given year.
func YearlyTotal(expenses []core.Expense, year int) core.Money {
	var cents int64
	for _, e := range expenses {
		if e.Status == core.StatusDeleted {
			continue
		}
		if e.Date.Year() == year {
			cents += e.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// MonthlyBreakdown returns one total per calendar month of the year, always
// twelve entries in month order.
func MonthlyBreakdown(expenses []core.Expense, year int) []core.MonthAmount {
	totals := make([]int64, 13)
	for _, e := range expenses {
		if e.Status == core.StatusDeleted || e.Date.Year() != year {
			continue
		}
		totals[e.Date.Month()] += e.Amount.Cents
	}
	out := make([]core.MonthAmount, 0, 12)
	for m := 1; m <= 12; m++ {
		out = append(out, core.MonthAmount{Month: m, Amount: core.Money{Cents: totals[m]}})
	}
	return out
}

// AverageMonthlySpend divides the yearly total by the number of months that
// have at least one recorded expense, not by a fixed twelve. A year with
// expenses only in March and April averages over two months, so partial
// years are not skewed downward. Returns zero when the year has no expenses.
func AverageMonthlySpend(expenses []core.Expense, year int) core.Money {
	var total int64
	months := make(map[int]bool)
	for _, e := range expenses {
		if e.Status == core.StatusDeleted || e.Date.Year() != year {
			continue
		}
		total += e.Amount.Cents
		months[e.Date.Month()] = true
	}
	if len(months) == 0 {
		return core.Money{}
	}
	n := int64(len(months))
	// Half-up rounding.
	return core.Money{Cents: (total + n/2) / n}
}

// HighestSpendingMonth returns the month (1-12) with the largest total and
// that total. Ties go to the earliest month. Returns month 0 when the year
// has no expenses.
func HighestSpendingMonth(expenses []core.Expense, year int) (int, core.Money) {
	breakdown := MonthlyBreakdown(expenses, year)
	best, bestCents := 0, int64(0)
	for _, ma := range breakdown {
		if ma.Amount.Cents > bestCents {
			best, bestCents = ma.Month, ma.Amount.Cents
		}
	}
	return best, core.Money{Cents: bestCents}
}

// CategoryTotals groups non-deleted expenses by category. A zero year or
// month means "any". Results are sorted by amount descending, then name.
func CategoryTotals(expenses []core.Expense, year, month int) []core.CategoryAmount {
	totals := make(map[string]int64)
	for _, e := range expenses {
		if e.Status == core.StatusDeleted {
			continue
		}
		if year != 0 && e.Date.Year() != year {
			continue
		}
		if month != 0 && e.Date.Month() != month {
			continue
		}
		totals[e.Category] += e.Amount.Cents
	}
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, cents := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// HighestSpendingCategory returns the top category by summed amount and that
// sum. A zero year ranks across all time. Ties go to the alphabetically
// first category. Returns "" when there are no matching expenses.
func HighestSpendingCategory(expenses []core.Expense, year int) (string, core.Money) {
	totals := CategoryTotals(expenses, year, 0)
	if len(totals) == 0 {
		return "", core.Money{}
	}
	return totals[0].Name, totals[0].Amount
}

// BudgetAlerts reports each budgeted category whose spend for the given
// month strictly exceeds its monthly limit.
func BudgetAlerts(expenses []core.Expense, budgets []core.Budget, year, month int) []core.BudgetAlert {
	totals := CategoryTotals(expenses, year, month)
	spent := make(map[string]int64, len(totals))
	for _, ca := range totals {
		spent[ca.Name] = ca.Amount.Cents
	}
	var alerts []core.BudgetAlert
	for _, b := range budgets {
		if s := spent[b.Category]; s > b.MonthlyLimit.Cents {
			alerts = append(alerts, core.BudgetAlert{
				Category: b.Category,
				Limit:    b.MonthlyLimit,
				Spent:    core.Money{Cents: s},
			})
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Category < alerts[j].Category })
	return alerts
}

// TrendChart renders a monthly breakdown as a chart payload with month-name
// labels and whole-unit amounts.
func TrendChart(breakdown []core.MonthAmount) core.ChartData {
	chart := core.ChartData{
		Labels: make([]string, 0, len(breakdown)),
		Data:   make([]float64, 0, len(breakdown)),
	}
	for _, ma := range breakdown {
		chart.Labels = append(chart.Labels, time.Month(ma.Month).String())
		chart.Data = append(chart.Data, ma.Amount.Units())
	}
	return chart
}

// CategoryChart renders category totals as a chart payload.
func CategoryChart(totals []core.CategoryAmount) core.ChartData {
	chart := core.ChartData{
		Labels: make([]string, 0, len(totals)),
		Data:   make([]float64, 0, len(totals)),
	}
	for _, ca := range totals {
		chart.Labels = append(chart.Labels, ca.Name)
		chart.Data = append(chart.Data, ca.Amount.Units())
	}
	return chart
}

// Overview assembles the full dashboard summary for a year. month selects
// which month the MonthlyTotal field covers; pass 0 to omit it (full-year
// view, the original dashboard behaviour for past years).
func Overview(expenses []core.Expense, budgets []core.Budget, year, month int) core.YearOverview {
	ov := core.YearOverview{
		Year:        year,
		YearlyTotal: YearlyTotal(expenses, year),
		Breakdown:   MonthlyBreakdown(expenses, year),
		ByCategory:  CategoryTotals(expenses, year, 0),
	}
	ov.AverageMonthly = AverageMonthlySpend(expenses, year)
	ov.HighestMonth, ov.HighestMonthAmt = HighestSpendingMonth(expenses, year)
	ov.TopCategory, ov.TopCategoryAmt = HighestSpendingCategory(expenses, year)
	if month != 0 {
		ov.MonthlyTotal = MonthlyTotal(expenses, year, month)
		ov.Alerts = BudgetAlerts(expenses, budgets, year, month)
	}
	return ov
}
