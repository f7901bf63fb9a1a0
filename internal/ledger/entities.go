package ledger

import (
    "time"

    "github.com/google/uuid"
    "github.com/govalues/decimal"
    "github.com/govalues/money"

    "github.com/tinoosan/bankledger/internal/credential"
    "github.com/tinoosan/bankledger/internal/meta"
)

// Kind is the closed set of account variants. The string values double as the
// persisted account_type discriminator.
type Kind string

const (
    // KindBase is a plain account that may not go below zero.
    KindBase Kind = "Account"
    // KindSavings accrues interest at InterestRate and may not go below zero.
    KindSavings Kind = "SavingsAccount"
    // KindChecking may go negative down to -OverdraftLimit.
    KindChecking Kind = "CheckingAccount"
)

// Kinds lists every variant in declaration order.
var Kinds = []Kind{KindBase, KindSavings, KindChecking}

// Valid reports whether k is one of the known variants.
func (k Kind) Valid() bool {
    switch k {
    case KindBase, KindSavings, KindChecking:
        return true
    }
    return false
}

// TxType records the direction of a transaction; the amount itself is always positive.
type TxType string

const (
    TxDeposit  TxType = "DEPOSIT"
    TxWithdraw TxType = "WITHDRAW"
)

// User captures the owner of ledger data.
type User struct {
    Username   string
    Credential credential.Credential
    // Accounts lists owned account numbers in the order they were opened.
    Accounts []string
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
    return User{
        Username:   u.Username,
        Credential: u.Credential.Clone(),
        Accounts:   append([]string(nil), u.Accounts...),
    }
}

// Account holds a balance and its append-only transaction history.
// Variant data is carried alongside the Kind tag: InterestRate is only
// meaningful for KindSavings and OverdraftLimit only for KindChecking.
type Account struct {
    Number  string
    Owner   string
    Kind    Kind
    Balance money.Amount
    History []Transaction

    InterestRate   decimal.Decimal
    OverdraftLimit money.Amount

    // Metadata holds additional key-value attributes for the account.
    Metadata meta.Metadata
}

// Transaction is one entry of an account's history.
type Transaction struct {
    ID           uuid.UUID
    Timestamp    time.Time
    Type         TxType
    Amount       money.Amount
    BalanceAfter money.Amount
}
