package v1

import (
    "context"
    "net/http"
    "strings"

    "github.com/govalues/decimal"

    "github.com/tinoosan/bankledger/internal/dictionary"
    "github.com/tinoosan/bankledger/internal/meta"
    "github.com/tinoosan/bankledger/internal/service/registry"
)

type ctxKey string

const ctxKeySubject ctxKey = "authSubject"
const ctxKeyCredentials ctxKey = "validatedCredentials"
const ctxKeyOpenAccount ctxKey = "validatedOpenAccount"
const ctxKeyMetadataPatch ctxKey = "validatedMetadataPatch"
const ctxKeyAmount ctxKey = "validatedAmount"

// validateCredentials parses {username, password} for POST /v1/users and /v1/tokens.
func (s *Server) validateCredentials() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            if !requireJSON(w, r) { return }
            var req credentialsRequest
            if err := decodeStrict(r, &req); err != nil {
                bodyError(w, err)
                return
            }
            if strings.TrimSpace(req.Username) == "" || req.Password == "" {
                badRequest(w, "username and password are required")
                return
            }
            ctx := context.WithValue(r.Context(), ctxKeyCredentials, req)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validatePostAccount parses POST /v1/accounts and stores a registry.OpenRequest.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            if !requireJSON(w, r) { return }
            var req postAccountRequest
            if err := decodeStrict(r, &req); err != nil {
                bodyError(w, err)
                return
            }
            kind, ok := dictionary.ParseKind(req.AccountType)
            if !ok {
                unprocessable(w, "unknown account_type", "validation_error")
                return
            }
            in := registry.OpenRequest{Kind: kind}
            if req.InterestRate != nil {
                d, err := decimal.Parse(req.InterestRate.String())
                if err != nil { unprocessable(w, "invalid interest_rate", "validation_error"); return }
                in.InterestRate = d
            }
            if req.OverdraftLimit != nil {
                d, err := decimal.Parse(req.OverdraftLimit.String())
                if err != nil { unprocessable(w, "invalid overdraft_limit", "validation_error"); return }
                in.OverdraftLimit = d
            }
            if req.Metadata != nil {
                if err := meta.New(req.Metadata).Validate(); err != nil {
                    unprocessable(w, err.Error(), "validation_error")
                    return
                }
                in.Metadata = req.Metadata
            }
            ctx := context.WithValue(r.Context(), ctxKeyOpenAccount, in)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validatePatchAccount parses PATCH /v1/accounts/{number}.
func (s *Server) validatePatchAccount() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            if !requireJSON(w, r) { return }
            var req patchAccountRequest
            if err := decodeStrict(r, &req); err != nil {
                bodyError(w, err)
                return
            }
            if req.Metadata == nil {
                badRequest(w, "metadata is required")
                return
            }
            ctx := context.WithValue(r.Context(), ctxKeyMetadataPatch, req.Metadata)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validateAmount parses {amount} for deposits and withdrawals. Sign and
// currency rules are left to the ledger.
func (s *Server) validateAmount() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            if !requireJSON(w, r) { return }
            var req amountRequest
            if err := decodeStrict(r, &req); err != nil {
                bodyError(w, err)
                return
            }
            if req.Amount == "" {
                badRequest(w, "amount is required")
                return
            }
            d, err := decimal.Parse(req.Amount.String())
            if err != nil {
                unprocessable(w, "invalid amount", "invalid_amount")
                return
            }
            ctx := context.WithValue(r.Context(), ctxKeyAmount, d)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}
