package maintenance

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/liaohanzhen/cnoauth/linktoken"
)

// Router returns the admin HTTP surface:
//
//	GET    /tokens       flagged tokens (unbound and mismatched)
//	DELETE /tokens/{id}  remove a token
//
// Mount it behind the host's admin authentication; the routes themselves
// carry none.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/tokens", s.handleListTokens)
	r.Delete("/tokens/{id}", s.handleDeleteToken)
	return r
}

func (s *Service) handleListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	unbound, err := s.UnboundTokens(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	mismatched, err := s.MismatchedTokens(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	reports := make([]TokenReport, 0, len(unbound)+len(mismatched))
	reports = append(reports, unbound...)
	reports = append(reports, mismatched...)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reports); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Service) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid token id", http.StatusBadRequest)
		return
	}

	if err := s.DeleteToken(r.Context(), id); err != nil {
		if errors.Is(err, linktoken.ErrTokenNotFound) {
			http.Error(w, "token not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
