package http

import (
	"net/http"

	"github.com/GMosna/ContabilApp/internal/core"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.finance.Categories(r.Context())
	if err != nil {
		writeError(w, r, err, "categories")
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewResponse().Data(cats).Write(w)
}

// handleBanks lists the banks offered by the account form. The list is
// static, so no session is needed.
func (s *Server) handleBanks(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(core.Banks).Write(w)
}

func (s *Server) handleTransactionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.finance.TransactionTypes(r.Context())
	if err != nil {
		writeError(w, r, err, "transaction_types")
		return
	}
	if types == nil {
		types = []core.TransactionType{}
	}
	NewResponse().Data(types).Write(w)
}

func (s *Server) handleUpdateTransactionType(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	tt := core.TransactionType{
		ID:   transactionTypeIDParam(r),
		Name: sanitizeInput(p.Get("name")),
	}
	if tt.Name == "" {
		writeError(w, r, core.ValidationErrors{}.Add("name", core.ErrEmptyName), "update_transaction_type")
		return
	}

	updated, err := s.finance.UpdateTransactionType(r.Context(), tt)
	if err != nil {
		writeError(w, r, err, "update_transaction_type")
		return
	}
	NewResponse().Data(updated).NotifySuccess("Tipo de transação atualizado.").Write(w)
}

func (s *Server) handleDeleteTransactionType(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteTransactionType(r.Context(), transactionTypeIDParam(r)); err != nil {
		writeError(w, r, err, "delete_transaction_type")
		return
	}
	NewResponse().NotifySuccess("Tipo de transação excluído.").Write(w)
}
