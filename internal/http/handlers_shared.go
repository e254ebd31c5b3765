package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

type sharedRow struct {
	ID           string
	Title        string
	Total        string
	PaidBy       string
	Participants string
	PerPerson    string
	Date         string
	Settled      bool
	SettledOn    string
}

type sharedPage struct {
	Shared       []sharedRow
	Participants []string

	Participant string
	Status      string

	Today string
	Error string
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	s.renderSharedPage(w, r, "", http.StatusOK)
}

func (s *Server) renderSharedPage(w http.ResponseWriter, r *http.Request, errMsg string, status int) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := storage.SharedFilter{
		Participant: sanitizeInput(q.Get("participant")),
	}
	statusParam := q.Get("status")
	switch statusParam {
	case "pending":
		filter.Status = core.SharedPending
	case "settled":
		filter.Status = core.SharedSettled
	}

	shared, err := s.shared.ListSharedExpenses(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, "List shared expenses failed", "error", err)
		http.Error(w, "could not load shared expenses", http.StatusInternalServerError)
		return
	}
	participants, err := s.shared.Participants(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List participants failed", "error", err)
	}

	page := sharedPage{
		Participants: participants,
		Participant:  filter.Participant,
		Status:       statusParam,
		Today:        time.Now().Format("2006-01-02"),
		Error:        errMsg,
	}
	for _, se := range shared {
		row := sharedRow{
			ID:           se.ID,
			Title:        se.Title,
			Total:        formatAmount(se.Total.Cents),
			PaidBy:       se.PaidBy,
			Participants: strings.Join(se.Participants, ", "),
			PerPerson:    formatAmount(se.PerPerson.Cents),
			Date:         se.Date.String(),
			Settled:      se.Settled(),
		}
		if row.Settled {
			row.SettledOn = se.SettledOn.String()
		}
		page.Shared = append(page.Shared, row)
	}

	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	s.render(w, r, "shared.html", page)
}

func (s *Server) handleCreateShared(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		slog.WarnContext(ctx, "Parse form failed", "error", err)
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("total_amount")))
	if err != nil {
		s.renderSharedPage(w, r, "Invalid total: must be a positive number", http.StatusUnprocessableEntity)
		return
	}
	date, err := parseDateOrToday(r.Form.Get("date"))
	if err != nil {
		s.renderSharedPage(w, r, "Invalid date: use YYYY-MM-DD", http.StatusUnprocessableEntity)
		return
	}

	// Participants may arrive as repeated fields or one comma-separated value.
	var participants []string
	for _, v := range r.Form["participants"] {
		participants = append(participants, splitParticipants(v)...)
	}

	se, err := s.shared.CreateSharedExpense(ctx,
		sanitizeInput(r.Form.Get("title")),
		core.Money{Cents: cents},
		sanitizeInput(r.Form.Get("paid_by")),
		participants,
		date,
	)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusUnprocessableEntity {
			s.renderSharedPage(w, r, "Invalid shared expense: "+err.Error(), status)
			return
		}
		slog.ErrorContext(ctx, "Create shared expense failed", "error", err)
		http.Error(w, "could not save shared expense", status)
		return
	}

	slog.InfoContext(ctx, "Shared expense created",
		"id", se.ID, "title", se.Title, "participants", len(se.Participants))
	http.Redirect(w, r, "/shared-expenses", http.StatusSeeOther)
}

func (s *Server) handleSettleShared(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}
	settledOn, err := parseDateOrToday(r.Form.Get("settlement_date"))
	if err != nil {
		http.Error(w, "invalid settlement date", http.StatusUnprocessableEntity)
		return
	}

	if err := s.shared.SettleSharedExpense(ctx, id, settledOn); err != nil {
		status := errorStatus(err)
		switch status {
		case http.StatusNotFound:
			http.Error(w, "shared expense not found", status)
		case http.StatusConflict:
			http.Error(w, "shared expense already settled", status)
		default:
			slog.ErrorContext(ctx, "Settle shared expense failed", "id", id, "error", err)
			http.Error(w, "could not settle shared expense", status)
		}
		return
	}

	slog.InfoContext(ctx, "Shared expense settled", "id", id)
	http.Redirect(w, r, "/shared-expenses", http.StatusSeeOther)
}

type balanceRow struct {
	Name string
	Net  string
	// Creditor when the net position is positive.
	Positive bool
}

type debtRow struct {
	From   string
	To     string
	Amount string
}

type balancesPage struct {
	Positions []balanceRow
	Debts     []debtRow
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	positions, debts, err := s.shared.Balances(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Balance calculation failed", "error", err)
		http.Error(w, "could not compute balances", http.StatusInternalServerError)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		type jsonPosition struct {
			Name string  `json:"name"`
			Net  float64 `json:"net"`
		}
		type jsonDebt struct {
			From   string  `json:"from"`
			To     string  `json:"to"`
			Amount float64 `json:"amount"`
		}
		payload := struct {
			Positions []jsonPosition `json:"positions"`
			Debts     []jsonDebt     `json:"debts"`
		}{Positions: []jsonPosition{}, Debts: []jsonDebt{}}
		for _, p := range positions {
			payload.Positions = append(payload.Positions, jsonPosition{Name: p.Name, Net: p.Net.Units()})
		}
		for _, d := range debts {
			payload.Debts = append(payload.Debts, jsonDebt{From: d.From, To: d.To, Amount: d.Amount.Units()})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.ErrorContext(ctx, "Encode balances failed", "error", err)
		}
		return
	}

	var page balancesPage
	for _, p := range positions {
		page.Positions = append(page.Positions, balanceRow{
			Name:     p.Name,
			Net:      formatAmount(p.Net.Cents),
			Positive: p.Net.Cents > 0,
		})
	}
	for _, d := range debts {
		page.Debts = append(page.Debts, debtRow{
			From:   d.From,
			To:     d.To,
			Amount: formatAmount(d.Amount.Cents),
		})
	}

	s.render(w, r, "balances.html", page)
}
