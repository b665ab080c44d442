package http

import (
	"net/http"

	"smartexpense/internal/core"

	"github.com/go-chi/chi/v5"
)

type expenseList struct {
	Expenses []core.Expense `json:"expenses"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
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

	expenses, err := s.deps.Expenses.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenseList{Expenses: expenses})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.deps.Expenses.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/expenses/"+e.ID)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.deps.Expenses.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.deps.Expenses.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.deps.Expenses.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
