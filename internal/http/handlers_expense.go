package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

type expenseRow struct {
	ID          int64
	Date        string
	Category    string
	Description string
	PaymentMode string
	Amount      string
}

type expensesPage struct {
	Expenses   []expenseRow
	Categories []string
	Years      []int
	Total      string

	// Active filters, echoed back into the form.
	Category string
	Year     int
	Month    int
	Sort     string

	Today string
	Error string
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	s.renderExpensesPage(w, r, "", http.StatusOK)
}

func (s *Server) renderExpensesPage(w http.ResponseWriter, r *http.Request, errMsg string, status int) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := storage.ExpenseFilter{
		Category: sanitizeInput(q.Get("category")),
	}
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			filter.Year = y
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			filter.Month = m
		}
	}
	if v := strings.TrimSpace(q.Get("date")); v != "" {
		if d, err := core.ParseDate(v); err == nil {
			filter.Date = d.String()
		}
	}
	sort := q.Get("sort")
	if sort == "oldest" {
		filter.Sort = storage.SortOldest
	}

	expenses, err := s.expenses.ListExpenses(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, "List expenses failed", "error", err)
		http.Error(w, "could not load expenses", http.StatusInternalServerError)
		return
	}
	categories, err := s.expenses.Categories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List categories failed", "error", err)
	}
	years, err := s.expenses.Years(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List years failed", "error", err)
	}

	page := expensesPage{
		Categories: categories,
		Years:      years,
		Category:   filter.Category,
		Year:       filter.Year,
		Month:      filter.Month,
		Sort:       sort,
		Today:      time.Now().Format("2006-01-02"),
		Error:      errMsg,
	}
	var total int64
	for _, e := range expenses {
		total += e.Amount.Cents
		page.Expenses = append(page.Expenses, expenseRow{
			ID:          e.ID,
			Date:        e.Date.String(),
			Category:    e.Category,
			Description: e.Description,
			PaymentMode: e.PaymentMode,
			Amount:      formatAmount(e.Amount.Cents),
		})
	}
	page.Total = formatAmount(total)

	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	s.render(w, r, "expenses.html", page)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		slog.WarnContext(ctx, "Parse form failed", "error", err)
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("amount")))
	if err != nil {
		s.renderExpensesPage(w, r, "Invalid amount: must be a positive number", http.StatusUnprocessableEntity)
		return
	}
	date, err := parseDateOrToday(r.Form.Get("date"))
	if err != nil {
		s.renderExpensesPage(w, r, "Invalid date: use YYYY-MM-DD", http.StatusUnprocessableEntity)
		return
	}

	expense := core.Expense{
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(r.Form.Get("category")),
		Description: sanitizeInput(r.Form.Get("description")),
		PaymentMode: sanitizeInput(r.Form.Get("payment_mode")),
		Date:        date,
	}

	id, err := s.expenses.CreateExpense(ctx, expense)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusUnprocessableEntity {
			s.renderExpensesPage(w, r, "Invalid expense: "+err.Error(), status)
			return
		}
		slog.ErrorContext(ctx, "Create expense failed", "error", err)
		http.Error(w, "could not save expense", status)
		return
	}

	slog.InfoContext(ctx, "Expense created", "id", id, "category", expense.Category)
	s.invalidateAggregates()
	http.Redirect(w, r, "/expenses", http.StatusSeeOther)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid expense id", http.StatusBadRequest)
		return
	}

	if err := s.expenses.DeleteExpense(ctx, id); err != nil {
		status := errorStatus(err)
		if status == http.StatusNotFound {
			http.Error(w, "expense not found", status)
			return
		}
		slog.ErrorContext(ctx, "Delete expense failed", "id", id, "error", err)
		http.Error(w, "could not delete expense", status)
		return
	}

	s.invalidateAggregates()
	http.Redirect(w, r, "/expenses", http.StatusSeeOther)
}
