package http

import (
	"net/http"

	"smartexpense/internal/core"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ov, err := s.deps.Dashboard.Overview(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.deps.Budgets.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	current := core.DefaultBudget(userID)
	if req.keepsMonthlyLimit() {
		if current, err = s.deps.Budgets.Get(r.Context(), userID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	b, err := req.budget(current)
	if err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := s.deps.Budgets.Save(r.Context(), userID, b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := s.deps.Budgets.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
