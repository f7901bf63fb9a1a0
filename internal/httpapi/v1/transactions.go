package v1

import (
    "net/http"

    chi "github.com/go-chi/chi/v5"
    "github.com/govalues/decimal"

    "github.com/tinoosan/bankledger/internal/ledger"
)

// POST /v1/accounts/{number}/deposits
func (s *Server) postDeposit(w http.ResponseWriter, r *http.Request) {
    amount := r.Context().Value(ctxKeyAmount).(decimal.Decimal)
    tx, err := s.bank.Deposit(r.Context(), subject(r), chi.URLParam(r, "number"), amount)
    s.writeTransaction(w, r, "deposit", tx, err)
}

// POST /v1/accounts/{number}/withdrawals
func (s *Server) postWithdrawal(w http.ResponseWriter, r *http.Request) {
    amount := r.Context().Value(ctxKeyAmount).(decimal.Decimal)
    tx, err := s.bank.Withdraw(r.Context(), subject(r), chi.URLParam(r, "number"), amount)
    s.writeTransaction(w, r, "withdraw", tx, err)
}

// POST /v1/accounts/{number}/interest
func (s *Server) postInterest(w http.ResponseWriter, r *http.Request) {
    tx, err := s.bank.ApplyInterest(r.Context(), subject(r), chi.URLParam(r, "number"))
    s.writeTransaction(w, r, "apply_interest", tx, err)
}

func (s *Server) writeTransaction(w http.ResponseWriter, r *http.Request, op string, tx ledger.Transaction, err error) {
    observeOperation(op, err)
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    toJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// GET /v1/accounts/{number}/statement
func (s *Server) getStatement(w http.ResponseWriter, r *http.Request) {
    number := chi.URLParam(r, "number")
    a, err := s.bank.Account(r.Context(), subject(r), number)
    if err != nil {
        s.writeDomainErr(w, r, err)
        return
    }
    out := statementResponse{
        AccountNumber: a.Number,
        Currency:      a.Currency(),
        Balance:       a.Balance.Decimal().String(),
        Items:         make([]transactionResponse, 0, len(a.History)),
    }
    for _, tx := range a.Statement() {
        out.Items = append(out.Items, toTransactionResponse(tx))
    }
    toJSON(w, http.StatusOK, out)
}
