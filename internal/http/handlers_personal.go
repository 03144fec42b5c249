package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"casa/internal/core"
	"casa/internal/services"
)

type createPersonalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CostCents   int64  `json:"cost_cents"`
	Cost        string `json:"cost,omitempty"`
}

type personalExpenseJSON struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	CostCents       int64     `json:"cost_cents"`
	Source          string    `json:"source"`
	SharedPaymentID string    `json:"shared_payment_id,omitempty"`
	Month           int       `json:"month"`
	Year            int       `json:"year"`
	CreatedAt       time.Time `json:"created_at"`
}

type memberSummaryJSON struct {
	UserID     string                `json:"user_id"`
	Username   string                `json:"username"`
	TotalCents int64                 `json:"total_cents"`
	Entries    []personalExpenseJSON `json:"entries"`
}

type summaryJSON struct {
	Year       int                 `json:"year"`
	Month      int                 `json:"month"`
	TotalCents int64               `json:"total_cents"`
	Members    []memberSummaryJSON `json:"members"`
}

func toPersonalJSON(e *core.PersonalExpense) personalExpenseJSON {
	return personalExpenseJSON{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		CostCents:       e.Cost.Cents,
		Source:          string(e.Source),
		SharedPaymentID: e.SharedPaymentID,
		Month:           e.Month,
		Year:            e.Year,
		CreatedAt:       e.CreatedAt,
	}
}

func toSummaryJSON(s *core.MonthlySummary) summaryJSON {
	out := summaryJSON{
		Year:       s.Year,
		Month:      s.Month,
		TotalCents: s.Total.Cents,
		Members:    make([]memberSummaryJSON, 0, len(s.Members)),
	}
	for i := range s.Members {
		m := &s.Members[i]
		member := memberSummaryJSON{
			UserID:     m.UserID,
			Username:   m.Username,
			TotalCents: m.Total.Cents,
			Entries:    make([]personalExpenseJSON, 0, len(m.Entries)),
		}
		for j := range m.Entries {
			member.Entries = append(member.Entries, toPersonalJSON(&m.Entries[j]))
		}
		out.Members = append(out.Members, member)
	}
	return out
}

func summaryKey(householdID string) string {
	return "summary:" + householdID
}

func (s *Server) handleListPersonal(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.ListCurrentMonth(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]personalExpenseJSON, 0, len(entries))
	for i := range entries {
		out = append(out, toPersonalJSON(&entries[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePersonal(w http.ResponseWriter, r *http.Request) {
	var req createPersonalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	cost, err := amountCents(req.Cost, req.CostCents)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.ledger.CreateManual(r.Context(), userID(r.Context()), services.CreateManualInput{
		Title:       req.Title,
		Description: req.Description,
		Cost:        cost,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Delete(summaryKey(entry.HouseholdID))
	writeJSON(w, http.StatusCreated, toPersonalJSON(entry))
}

func (s *Server) handleDeletePersonal(w http.ResponseWriter, r *http.Request) {
	caller := userID(r.Context())
	if err := s.ledger.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	if user, err := s.store.GetUserByID(r.Context(), caller); err == nil && user.HouseholdID != "" {
		s.summaryCache.Delete(summaryKey(user.HouseholdID))
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type monthlyTotalJSON struct {
	Year       int   `json:"year"`
	Month      int   `json:"month"`
	TotalCents int64 `json:"total_cents"`
}

// handleMonthlyTotal sums the caller's ledger for one month. The month
// and year query parameters default to the current calendar month.
func (s *Server) handleMonthlyTotal(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	total, err := s.ledger.MonthlyTotal(r.Context(), userID(r.Context()), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	writeJSON(w, http.StatusOK, monthlyTotalJSON{Year: year, Month: month, TotalCents: total.Cents})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	caller := userID(r.Context())

	user, err := s.store.GetUserByID(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.HouseholdID == "" {
		writeError(w, r, core.ErrNoHousehold)
		return
	}

	if cached, ok := s.summaryCache.Get(summaryKey(user.HouseholdID)); ok {
		writeJSON(w, http.StatusOK, toSummaryJSON(cached))
		return
	}

	summary, err := s.ledger.Summary(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Set(summaryKey(user.HouseholdID), summary)
	writeJSON(w, http.StatusOK, toSummaryJSON(summary))
}
