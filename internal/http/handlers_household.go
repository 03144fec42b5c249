package http

import (
	"net/http"
	"time"

	"casa/internal/core"
)

type createHouseholdRequest struct {
	Name string `json:"name"`
}

type joinHouseholdRequest struct {
	Code string `json:"code"`
}

type householdJSON struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	Members   []userJSON `json:"members,omitempty"`
}

func toHouseholdJSON(h *core.Household, members []core.User) householdJSON {
	out := householdJSON{
		ID:        h.ID,
		Name:      h.Name,
		Code:      h.Code,
		CreatedBy: h.CreatedBy,
		CreatedAt: h.CreatedAt,
	}
	for i := range members {
		out.Members = append(out.Members, toUserJSON(&members[i]))
	}
	return out
}

func (s *Server) handleCreateHousehold(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	h, err := s.households.Create(r.Context(), userID(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHouseholdJSON(h, nil))
}

func (s *Server) handleJoinHousehold(w http.ResponseWriter, r *http.Request) {
	var req joinHouseholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	h, err := s.households.Join(r.Context(), userID(r.Context()), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Delete(summaryKey(h.ID))
	writeJSON(w, http.StatusOK, toHouseholdJSON(h, nil))
}

func (s *Server) handleCurrentHousehold(w http.ResponseWriter, r *http.Request) {
	h, members, err := s.households.Current(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHouseholdJSON(h, members))
}

func (s *Server) handleLeaveHousehold(w http.ResponseWriter, r *http.Request) {
	if err := s.households.Leave(r.Context(), userID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteHousehold(w http.ResponseWriter, r *http.Request) {
	if err := s.households.Delete(r.Context(), userID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
