package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
	"spendtrack/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	s := NewServer("127.0.0.1:0",
		services.NewExpenseService(repo, nil),
		services.NewSharedExpenseService(repo),
		services.NewReportService(repo),
		repo.Ping,
	)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, repo
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := get(t, s, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
	if rec := get(t, s, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", rec.Code)
	}
}

func TestReadyzReportsDatabaseUnavailable(t *testing.T) {
	s, _ := newTestServer(t)
	s.ping = func(context.Context) error { return errors.New("database is closed") }

	if rec := get(t, s, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz with failing ping = %d, want 503", rec.Code)
	}
}

func TestIndexRedirectsToDashboard(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("GET / = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location = %q, want /dashboard", loc)
	}
}

func TestCreateExpenseFlow(t *testing.T) {
	s, repo := newTestServer(t)

	rec := postForm(t, s, "/expenses", url.Values{
		"amount":       {"12.50"},
		"category":     {"groceries"},
		"description":  {"weekly shop"},
		"payment_mode": {"card"},
		"date":         {"2025-03-10"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST /expenses = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}

	expenses, err := repo.ListExpenses(context.Background(), storage.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(expenses) != 1 || expenses[0].Amount.Cents != 1250 {
		t.Errorf("stored expenses = %v, want one of 1250 cents", expenses)
	}

	// List page shows the new expense.
	page := get(t, s, "/expenses")
	if page.Code != http.StatusOK {
		t.Fatalf("GET /expenses = %d, want 200", page.Code)
	}
	if !strings.Contains(page.Body.String(), "weekly shop") {
		t.Error("expenses page missing the new expense")
	}

	// Exact-date filter excludes other days.
	page = get(t, s, "/expenses?date=2025-03-11")
	if strings.Contains(page.Body.String(), "weekly shop") {
		t.Error("date filter should exclude expenses from other days")
	}
	page = get(t, s, "/expenses?date=2025-03-10")
	if !strings.Contains(page.Body.String(), "weekly shop") {
		t.Error("date filter should include the matching day")
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"zero amount", url.Values{
			"amount": {"0"}, "category": {"groceries"},
			"description": {"x"}, "payment_mode": {"card"}, "date": {"2025-03-10"},
		}},
		{"negative amount", url.Values{
			"amount": {"-5"}, "category": {"groceries"},
			"description": {"x"}, "payment_mode": {"card"}, "date": {"2025-03-10"},
		}},
		{"missing category", url.Values{
			"amount": {"5.00"}, "category": {""},
			"description": {"x"}, "payment_mode": {"card"}, "date": {"2025-03-10"},
		}},
		{"bad date", url.Values{
			"amount": {"5.00"}, "category": {"groceries"},
			"description": {"x"}, "payment_mode": {"card"}, "date": {"not-a-date"},
		}},
		{"description too long", url.Values{
			"amount": {"5.00"}, "category": {"groceries"},
			"description": {strings.Repeat("x", 201)}, "payment_mode": {"card"}, "date": {"2025-03-10"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, s, "/expenses", tt.form)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("POST /expenses = %d, want 422", rec.Code)
			}
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	s, repo := newTestServer(t)
	ctx := context.Background()

	d, _ := core.ParseDate("2025-03-10")
	id, err := repo.CreateExpense(ctx, core.Expense{
		Amount: core.Money{Cents: 1000}, Category: "groceries",
		Description: "x", PaymentMode: core.PayCash, Date: d,
	})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}

	rec := postForm(t, s, "/expenses/"+itoa(id)+"/delete", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST delete = %d, want 303", rec.Code)
	}

	rec = postForm(t, s, "/expenses/"+itoa(id)+"/delete", url.Values{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}

	rec = postForm(t, s, "/expenses/abc/delete", url.Values{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete with bad id = %d, want 400", rec.Code)
	}
}

func TestSharedExpenseFlow(t *testing.T) {
	s, repo := newTestServer(t)
	ctx := context.Background()

	rec := postForm(t, s, "/shared-expenses", url.Values{
		"title":        {"Dinner"},
		"total_amount": {"30.00"},
		"paid_by":      {"Alice"},
		"participants": {"Bob, Carol"},
		"date":         {"2025-03-10"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST /shared-expenses = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}

	shared, err := repo.ListSharedExpenses(ctx, storage.SharedFilter{})
	if err != nil {
		t.Fatalf("ListSharedExpenses() error = %v", err)
	}
	if len(shared) != 1 || shared[0].PerPerson.Cents != 1000 {
		t.Fatalf("stored shared = %v, want one with per-person 1000", shared)
	}
	id := shared[0].ID

	// Balances show two unsettled debts toward the payer.
	balances := get(t, s, "/balances")
	if balances.Code != http.StatusOK {
		t.Fatalf("GET /balances = %d, want 200", balances.Code)
	}
	if !strings.Contains(balances.Body.String(), "Alice") {
		t.Error("balances page missing the payer")
	}

	// Same data as JSON when asked for it.
	req := httptest.NewRequest(http.MethodGet, "/shared-expenses/balances", nil)
	req.Header.Set("Accept", "application/json")
	jsonRec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(jsonRec, req)
	if jsonRec.Code != http.StatusOK {
		t.Fatalf("GET balances JSON = %d, want 200", jsonRec.Code)
	}
	var payload struct {
		Positions []struct {
			Name string  `json:"name"`
			Net  float64 `json:"net"`
		} `json:"positions"`
		Debts []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"debts"`
	}
	if err := json.Unmarshal(jsonRec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode balances JSON: %v", err)
	}
	if len(payload.Positions) != 3 || len(payload.Debts) != 2 {
		t.Errorf("balances JSON = %d positions, %d debts; want 3 and 2", len(payload.Positions), len(payload.Debts))
	}

	rec = postForm(t, s, "/shared-expenses/"+id+"/settle", url.Values{
		"settlement_date": {"2025-04-01"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("settle = %d, want 303", rec.Code)
	}

	// Second settle conflicts.
	rec = postForm(t, s, "/shared-expenses/"+id+"/settle", url.Values{})
	if rec.Code != http.StatusConflict {
		t.Errorf("second settle = %d, want 409", rec.Code)
	}

	rec = postForm(t, s, "/shared-expenses/no-such-id/settle", url.Values{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("settle missing = %d, want 404", rec.Code)
	}
}

func TestSharedExpenseWithoutParticipants(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postForm(t, s, "/shared-expenses", url.Values{
		"title":        {"Dinner"},
		"total_amount": {"30.00"},
		"paid_by":      {"Alice"},
		"participants": {""},
		"date":         {"2025-03-10"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST without participants = %d, want 422", rec.Code)
	}
}

func TestDashboardPages(t *testing.T) {
	s, _ := newTestServer(t)

	postForm(t, s, "/expenses", url.Values{
		"amount": {"25.00"}, "category": {"groceries"},
		"description": {"x"}, "payment_mode": {"card"}, "date": {"2025-01-10"},
	})
	postForm(t, s, "/expenses", url.Values{
		"amount": {"5.00"}, "category": {"transport"},
		"description": {"y"}, "payment_mode": {"cash"}, "date": {"2025-02-01"},
	})

	rec := get(t, s, "/dashboard?year=2025&month=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /dashboard = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "groceries") {
		t.Error("dashboard missing category breakdown")
	}

	rec = get(t, s, "/dashboard/data?year=2025")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /dashboard/data = %d, want 200", rec.Code)
	}
	var chart core.ChartData
	if err := json.Unmarshal(rec.Body.Bytes(), &chart); err != nil {
		t.Fatalf("chart JSON invalid: %v", err)
	}
	if len(chart.Labels) != 12 || len(chart.Data) != 12 {
		t.Fatalf("chart has %d labels / %d points, want 12", len(chart.Labels), len(chart.Data))
	}
	if chart.Data[0] != 25 {
		t.Errorf("January total = %v, want 25", chart.Data[0])
	}

	rec = get(t, s, "/dashboard/data?year=2025&kind=categories")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET category chart = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &chart); err != nil {
		t.Fatalf("chart JSON invalid: %v", err)
	}
	if len(chart.Labels) != 2 {
		t.Errorf("category chart labels = %v, want two categories", chart.Labels)
	}
}

func TestDashboardCacheInvalidatedOnWrite(t *testing.T) {
	s, _ := newTestServer(t)

	// Prime the cache.
	get(t, s, "/dashboard/data?year=2025")

	postForm(t, s, "/expenses", url.Values{
		"amount": {"10.00"}, "category": {"groceries"},
		"description": {"x"}, "payment_mode": {"card"}, "date": {"2025-01-10"},
	})

	rec := get(t, s, "/dashboard/data?year=2025")
	var chart core.ChartData
	if err := json.Unmarshal(rec.Body.Bytes(), &chart); err != nil {
		t.Fatalf("chart JSON invalid: %v", err)
	}
	if chart.Data[0] != 10 {
		t.Errorf("January total after write = %v, want 10 (stale cache?)", chart.Data[0])
	}
}

func TestBudgetsFlow(t *testing.T) {
	s, repo := newTestServer(t)

	rec := postForm(t, s, "/budgets", url.Values{
		"category":      {"groceries"},
		"monthly_limit": {"400.00"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST /budgets = %d, want 303", rec.Code)
	}

	budgets, err := repo.ListBudgets(context.Background())
	if err != nil {
		t.Fatalf("ListBudgets() error = %v", err)
	}
	if len(budgets) != 1 || budgets[0].MonthlyLimit.Cents != 40000 {
		t.Fatalf("budgets = %v, want one of 40000 cents", budgets)
	}

	rec = postForm(t, s, "/budgets", url.Values{
		"category":      {"groceries"},
		"monthly_limit": {"0"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST zero limit = %d, want 422", rec.Code)
	}

	rec = postForm(t, s, "/budgets/"+itoa(budgets[0].ID)+"/delete", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("delete budget = %d, want 303", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	get(t, s, "/healthz")
	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "http_requests_total") {
		t.Errorf("metrics missing request counter: %q", body)
	}
	if !strings.Contains(body, `cache_entries{type="overview"}`) {
		t.Errorf("metrics missing cache gauge: %q", body)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
