package http

import (
	"net/http"
	"time"

	"casa/internal/core"
	"casa/internal/services"
)

type createExpenseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TotalCents  int64  `json:"total_cents"`
	Total       string `json:"total,omitempty"`
	Type        string `json:"type"`
}

type updateExpenseRequest struct {
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total,omitempty"`
}

// amountCents resolves a money field that may arrive either as integer
// cents or as a decimal string like "123.45". The string form wins
// when both are present.
func amountCents(decimal string, cents int64) (core.Money, error) {
	if decimal == "" {
		return core.Money{Cents: cents}, nil
	}
	parsed, err := core.ParseDecimalToCents(decimal)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: parsed}, nil
}

type paymentJSON struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

type expenseJSON struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Type           string        `json:"type"`
	CreatedBy      string        `json:"created_by"`
	TotalCents     int64         `json:"total_cents"`
	UnitCents      int64         `json:"unit_cents"`
	RemainingCents int64         `json:"remaining_cents"`
	IsFullyPaid    bool          `json:"is_fully_paid"`
	UserHasPaid    bool          `json:"user_has_paid"`
	MembersCount   int           `json:"members_count"`
	Payments       []paymentJSON `json:"payments"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type paymentOutcomeJSON struct {
	Payment paymentJSON `json:"payment"`
	Settled bool        `json:"settled"`
	Deleted bool        `json:"deleted"`
}

func toPaymentJSON(p *core.ExpensePayment) paymentJSON {
	return paymentJSON{
		ID:          p.ID,
		UserID:      p.UserID,
		AmountCents: p.Amount.Cents,
		PaidAt:      p.PaidAt,
	}
}

func toExpenseJSON(d *services.ExpenseDetails, callerID string) expenseJSON {
	out := expenseJSON{
		ID:             d.Expense.ID,
		Title:          d.Expense.Title,
		Description:    d.Expense.Description,
		Type:           string(d.Expense.Type),
		CreatedBy:      d.Expense.CreatedBy,
		TotalCents:     d.Expense.Total.Cents,
		UnitCents:      d.Expense.Unit.Cents,
		RemainingCents: d.Expense.Remaining.Cents,
		IsFullyPaid:    d.Expense.IsFullyPaid(),
		MembersCount:   d.MembersCount,
		Payments:       make([]paymentJSON, 0, len(d.Payments)),
		CreatedAt:      d.Expense.CreatedAt,
		UpdatedAt:      d.Expense.UpdatedAt,
	}
	for i := range d.Payments {
		if d.Payments[i].UserID == callerID {
			out.UserHasPaid = true
		}
		out.Payments = append(out.Payments, toPaymentJSON(&d.Payments[i]))
	}
	return out
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	caller := userID(r.Context())
	details, err := s.expenses.List(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseJSON, 0, len(details))
	for i := range details {
		out = append(out, toExpenseJSON(&details[i], caller))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	total, err := amountCents(req.Total, req.TotalCents)
	if err != nil {
		writeError(w, r, err)
		return
	}

	caller := userID(r.Context())
	details, err := s.expenses.Create(r.Context(), caller, services.CreateExpenseInput{
		Title:       req.Title,
		Description: req.Description,
		Total:       total,
		Type:        core.ExpenseType(req.Type),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseJSON(details, caller))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	caller := userID(r.Context())
	details, err := s.expenses.Get(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseJSON(details, caller))
}

func (s *Server) handlePayExpense(w http.ResponseWriter, r *http.Request) {
	caller := userID(r.Context())
	outcome, err := s.expenses.Pay(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.paymentsTotal.Inc()
	if outcome.Settled {
		s.metrics.settledTotal.Inc()
	}
	s.summaryCache.Delete(summaryKey(outcome.Mirror.HouseholdID))

	writeJSON(w, http.StatusOK, paymentOutcomeJSON{
		Payment: toPaymentJSON(&outcome.Payment),
		Settled: outcome.Settled,
		Deleted: outcome.Deleted,
	})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req updateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	total, err := amountCents(req.Total, req.TotalCents)
	if err != nil {
		writeError(w, r, err)
		return
	}

	caller := userID(r.Context())
	expense, err := s.expenses.Update(r.Context(), caller, r.PathValue("id"), total)
	if err != nil {
		writeError(w, r, err)
		return
	}

	details, err := s.expenses.Get(r.Context(), caller, expense.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseJSON(details, caller))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), userID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
