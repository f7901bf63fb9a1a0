package v1

import (
    "encoding/json"
    "time"

    "github.com/tinoosan/bankledger/internal/dictionary"
    "github.com/tinoosan/bankledger/internal/ledger"
)

type credentialsRequest struct {
    Username string `json:"username"`
    Password string `json:"password"`
}

type userResponse struct {
    Username string   `json:"username"`
    Accounts []string `json:"accounts"`
}

type tokenResponse struct {
    AccessToken string    `json:"access_token"`
    TokenType   string    `json:"token_type"`
    ExpiresIn   int64     `json:"expires_in"`
    ExpiresAt   time.Time `json:"expires_at"`
}

// Accounts

type postAccountRequest struct {
    AccountType    string            `json:"account_type"`
    InterestRate   *json.Number      `json:"interest_rate,omitempty"`
    OverdraftLimit *json.Number      `json:"overdraft_limit,omitempty"`
    Metadata       map[string]string `json:"metadata,omitempty"`
}

type patchAccountRequest struct {
    Metadata map[string]string `json:"metadata"`
}

type accountResponse struct {
    AccountNumber    string            `json:"account_number"`
    Owner            string            `json:"owner"`
    AccountType      ledger.Kind       `json:"account_type"`
    Label            string            `json:"label"`
    Currency         string            `json:"currency"`
    Balance          string            `json:"balance"`
    Floor            string            `json:"floor"`
    InterestRate     *string           `json:"interest_rate,omitempty"`
    OverdraftLimit   *string           `json:"overdraft_limit,omitempty"`
    TransactionCount int               `json:"transaction_count"`
    Metadata         map[string]string `json:"metadata,omitempty"`
}

type listAccountsResponse struct {
    Items []accountResponse `json:"items"`
}

// Transactions

type amountRequest struct {
    Amount json.Number `json:"amount"`
}

type transactionResponse struct {
    ID           string    `json:"id"`
    Timestamp    time.Time `json:"timestamp"`
    Type         string    `json:"type"`
    Amount       string    `json:"amount"`
    BalanceAfter string    `json:"balance_after"`
}

type statementResponse struct {
    AccountNumber string                `json:"account_number"`
    Currency      string                `json:"currency"`
    Balance       string                `json:"balance"`
    Items         []transactionResponse `json:"items"`
}

func toUserResponse(u ledger.User) userResponse {
    accts := u.Accounts
    if accts == nil { accts = []string{} }
    return userResponse{Username: u.Username, Accounts: accts}
}

func toAccountResponse(a ledger.Account) accountResponse {
    resp := accountResponse{
        AccountNumber:    a.Number,
        Owner:            a.Owner,
        AccountType:      a.Kind,
        Currency:         a.Currency(),
        Balance:          a.Balance.Decimal().String(),
        Floor:            a.Floor().Decimal().String(),
        TransactionCount: len(a.History),
        Metadata:         a.Metadata,
    }
    if def, ok := dictionary.Lookup(a.Kind); ok { resp.Label = def.Label }
    switch a.Kind {
    case ledger.KindSavings:
        rate := a.InterestRate.String()
        resp.InterestRate = &rate
    case ledger.KindChecking:
        limit := a.OverdraftLimit.Decimal().String()
        resp.OverdraftLimit = &limit
    }
    return resp
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
    return transactionResponse{
        ID:           tx.ID.String(),
        Timestamp:    tx.Timestamp,
        Type:         string(tx.Type),
        Amount:       tx.Amount.Decimal().String(),
        BalanceAfter: tx.BalanceAfter.Decimal().String(),
    }
}
