package v1

import (
    "context"

    "github.com/govalues/decimal"

    "github.com/tinoosan/bankledger/internal/ledger"
    "github.com/tinoosan/bankledger/internal/service/registry"
)

// Bank is the registry surface the API drives. *registry.Registry satisfies it.
type Bank interface {
    RegisterUser(ctx context.Context, username, password string) (ledger.User, error)
    Authenticate(ctx context.Context, username, password string) (ledger.User, error)
    OpenAccount(ctx context.Context, username string, req registry.OpenRequest) (ledger.Account, error)
    AccountsFor(ctx context.Context, username string) ([]ledger.Account, error)
    Account(ctx context.Context, username, number string) (ledger.Account, error)
    // Deposit and Withdraw take positive amounts in the account's currency.
    Deposit(ctx context.Context, username, number string, amount decimal.Decimal) (ledger.Transaction, error)
    Withdraw(ctx context.Context, username, number string, amount decimal.Decimal) (ledger.Transaction, error)
    ApplyInterest(ctx context.Context, username, number string) (ledger.Transaction, error)
    Statement(ctx context.Context, username, number string) ([]ledger.Transaction, error)
    UpdateMetadata(ctx context.Context, username, number string, patch map[string]string) (ledger.Account, error)
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
    Ready(ctx context.Context) error
}

var _ Bank = (*registry.Registry)(nil)
