package v1

import (
    "net/http"

    chi "github.com/go-chi/chi/v5"

    "github.com/tinoosan/bankledger/internal/service/registry"
)

// POST /v1/accounts
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
    in := r.Context().Value(ctxKeyOpenAccount).(registry.OpenRequest)
    a, err := s.bank.OpenAccount(r.Context(), subject(r), in)
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    w.Header().Set("Location", "/v1/accounts/"+a.Number)
    toJSON(w, http.StatusCreated, toAccountResponse(a))
}

// GET /v1/accounts
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
    accts, err := s.bank.AccountsFor(r.Context(), subject(r))
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    out := listAccountsResponse{Items: make([]accountResponse, 0, len(accts))}
    for _, a := range accts {
        out.Items = append(out.Items, toAccountResponse(a))
    }
    toJSON(w, http.StatusOK, out)
}

// GET /v1/accounts/{number}
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
    a, err := s.bank.Account(r.Context(), subject(r), chi.URLParam(r, "number"))
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    toJSON(w, http.StatusOK, toAccountResponse(a))
}

// PATCH /v1/accounts/{number} merges metadata; an empty value removes a key.
func (s *Server) patchAccount(w http.ResponseWriter, r *http.Request) {
    patch := r.Context().Value(ctxKeyMetadataPatch).(map[string]string)
    a, err := s.bank.UpdateMetadata(r.Context(), subject(r), chi.URLParam(r, "number"), patch)
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    toJSON(w, http.StatusOK, toAccountResponse(a))
}
