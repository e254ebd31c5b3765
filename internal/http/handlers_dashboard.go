package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendtrack/internal/core"
)

type categoryRow struct {
	Name   string
	Amount string
	// Bar width as a rounded percent of the largest category.
	Width int
}

type alertRow struct {
	Category string
	Limit    string
	Spent    string
}

type dashboardPage struct {
	Year  int
	Month int
	Years []int

	MonthlyTotal    string
	YearlyTotal     string
	AverageMonthly  string
	HighestMonth    string
	HighestMonthAmt string
	TopCategory     string
	TopCategoryAmt  string

	ByCategory []categoryRow
	Alerts     []alertRow
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, month := parseYearMonth(r)

	ov, err := s.getOverview(ctx, year, month)
	if err != nil {
		slog.ErrorContext(ctx, "Dashboard overview failed", "year", year, "month", month, "error", err)
		http.Error(w, "could not load dashboard", http.StatusInternalServerError)
		return
	}
	years, err := s.expenses.Years(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List years failed", "error", err)
	}
	if len(years) == 0 {
		years = []int{year}
	}

	page := dashboardPage{
		Year:           year,
		Month:          month,
		Years:          years,
		YearlyTotal:    formatAmount(ov.YearlyTotal.Cents),
		AverageMonthly: formatAmount(ov.AverageMonthly.Cents),
	}
	if month != 0 {
		page.MonthlyTotal = formatAmount(ov.MonthlyTotal.Cents)
	}
	if ov.HighestMonth != 0 {
		page.HighestMonth = time.Month(ov.HighestMonth).String()
		page.HighestMonthAmt = formatAmount(ov.HighestMonthAmt.Cents)
	}
	if ov.TopCategory != "" {
		page.TopCategory = ov.TopCategory
		page.TopCategoryAmt = formatAmount(ov.TopCategoryAmt.Cents)
	}

	var maxCents int64
	for _, c := range ov.ByCategory {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}
	for _, c := range ov.ByCategory {
		width := 0
		if maxCents > 0 && c.Amount.Cents > 0 {
			width = int((c.Amount.Cents*100 + maxCents/2) / maxCents)
			if width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		page.ByCategory = append(page.ByCategory, categoryRow{
			Name:   c.Name,
			Amount: formatAmount(c.Amount.Cents),
			Width:  width,
		})
	}
	for _, a := range ov.Alerts {
		page.Alerts = append(page.Alerts, alertRow{
			Category: a.Category,
			Limit:    formatAmount(a.Limit.Cents),
			Spent:    formatAmount(a.Spent.Cents),
		})
	}

	s.render(w, r, "dashboard.html", page)
}

// handleDashboardData serves the chart datasets as JSON. kind=trend gives
// twelve monthly totals; kind=categories gives per-category totals for the
// selected period.
func (s *Server) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, month := parseYearMonth(r)

	var (
		chart core.ChartData
		err   error
	)
	switch strings.TrimSpace(r.URL.Query().Get("kind")) {
	case "categories":
		chart, err = s.getCategoryChart(ctx, year, month)
	default:
		chart, err = s.getTrendChart(ctx, year)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Dashboard data failed", "year", year, "month", month, "error", err)
		http.Error(w, `{"error":"could not load chart data"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chart); err != nil {
		slog.ErrorContext(ctx, "Encode chart data failed", "error", err)
	}
}

type budgetRow struct {
	ID       int64
	Category string
	Limit    string
}

type budgetsPage struct {
	Budgets    []budgetRow
	Categories []string
	Error      string
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	s.renderBudgetsPage(w, r, "", http.StatusOK)
}

func (s *Server) renderBudgetsPage(w http.ResponseWriter, r *http.Request, errMsg string, status int) {
	ctx := r.Context()

	budgets, err := s.reports.Budgets(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List budgets failed", "error", err)
		http.Error(w, "could not load budgets", http.StatusInternalServerError)
		return
	}
	categories, err := s.expenses.Categories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List categories failed", "error", err)
	}

	page := budgetsPage{Categories: categories, Error: errMsg}
	for _, b := range budgets {
		page.Budgets = append(page.Budgets, budgetRow{
			ID:       b.ID,
			Category: b.Category,
			Limit:    formatAmount(b.MonthlyLimit.Cents),
		})
	}

	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	s.render(w, r, "budgets.html", page)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("monthly_limit")))
	if err != nil {
		s.renderBudgetsPage(w, r, "Invalid limit: must be a positive number", http.StatusUnprocessableEntity)
		return
	}

	budget := core.Budget{
		Category:     sanitizeInput(r.Form.Get("category")),
		MonthlyLimit: core.Money{Cents: cents},
	}
	if _, err := s.reports.SetBudget(ctx, budget); err != nil {
		status := errorStatus(err)
		if status == http.StatusUnprocessableEntity {
			s.renderBudgetsPage(w, r, "Invalid budget: "+err.Error(), status)
			return
		}
		slog.ErrorContext(ctx, "Create budget failed", "error", err)
		http.Error(w, "could not save budget", status)
		return
	}

	s.invalidateAggregates()
	http.Redirect(w, r, "/budgets", http.StatusSeeOther)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid budget id", http.StatusBadRequest)
		return
	}

	if err := s.reports.DeleteBudget(ctx, id); err != nil {
		status := errorStatus(err)
		if status == http.StatusNotFound {
			http.Error(w, "budget not found", status)
			return
		}
		slog.ErrorContext(ctx, "Delete budget failed", "id", id, "error", err)
		http.Error(w, "could not delete budget", status)
		return
	}

	s.invalidateAggregates()
	http.Redirect(w, r, "/budgets", http.StatusSeeOther)
}
