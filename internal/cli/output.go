package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected operation (bad credentials, insufficient funds, ...)
	ExitCommandError = 2 // Command error (bad config, unreachable store, ...)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Storage failures map to
// ExitCommandError, anything else without an ExitError to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, errs.ErrStorage) {
		return ExitCommandError
	}
	return ExitFailure
}

// errorCode names err for JSON output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errs.ErrDuplicateUser):
		return "duplicate_user"
	case errors.Is(err, errs.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, errs.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, errs.ErrOverdraftExceeded):
		return "overdraft_exceeded"
	case errors.Is(err, errs.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errs.ErrInvalid):
		return "validation_error"
	case errors.Is(err, errs.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope for every command.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data as JSON, or calls text for human output.
func (f *OutputFormatter) Success(data any, text func(io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Fail reports err in JSON mode and returns it so the exit code is set.
// Text mode leaves printing to main.
func (f *OutputFormatter) Fail(err error) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResponse{Status: "error", Error: &CLIError{Code: errorCode(err), Message: err.Error()}})
	}
	return err
}

type userView struct {
	Username string   `json:"username"`
	Accounts []string `json:"accounts"`
}

type accountView struct {
	Number         string            `json:"account_number"`
	Owner          string            `json:"owner"`
	Type           ledger.Kind       `json:"account_type"`
	Currency       string            `json:"currency"`
	Balance        string            `json:"balance"`
	InterestRate   string            `json:"interest_rate,omitempty"`
	OverdraftLimit string            `json:"overdraft_limit,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type txView struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
}

type statementView struct {
	Account      accountView `json:"account"`
	Transactions []txView    `json:"transactions"`
}

func toUserView(u ledger.User) userView {
	accts := u.Accounts
	if accts == nil {
		accts = []string{}
	}
	return userView{Username: u.Username, Accounts: accts}
}

func toAccountView(a ledger.Account) accountView {
	v := accountView{
		Number:   a.Number,
		Owner:    a.Owner,
		Type:     a.Kind,
		Currency: a.Currency(),
		Balance:  a.Balance.Decimal().String(),
		Metadata: a.Metadata,
	}
	switch a.Kind {
	case ledger.KindSavings:
		v.InterestRate = a.InterestRate.String()
	case ledger.KindChecking:
		v.OverdraftLimit = a.OverdraftLimit.Decimal().String()
	}
	return v
}

func toTxView(tx ledger.Transaction) txView {
	return txView{
		ID:           tx.ID.String(),
		Timestamp:    tx.Timestamp.UTC(),
		Type:         string(tx.Type),
		Amount:       tx.Amount.Decimal().String(),
		BalanceAfter: tx.BalanceAfter.Decimal().String(),
	}
}

func toStatementView(a ledger.Account) statementView {
	v := statementView{Account: toAccountView(a), Transactions: []txView{}}
	for _, tx := range a.Statement() {
		v.Transactions = append(v.Transactions, toTxView(tx))
	}
	return v
}

func writeAccountLine(w io.Writer, v accountView) {
	extra := ""
	switch {
	case v.InterestRate != "":
		extra = "  rate " + v.InterestRate
	case v.OverdraftLimit != "":
		extra = "  overdraft " + v.OverdraftLimit
	}
	fmt.Fprintf(w, "%s  %-15s  %12s %s%s\n", v.Number, v.Type, v.Balance, v.Currency, extra)
}

func writeTxLine(w io.Writer, v txView) {
	fmt.Fprintf(w, "%-20s  %-8s  %12s  %12s\n", v.Timestamp.Format(time.RFC3339), v.Type, v.Amount, v.BalanceAfter)
}

// writeStatement renders the text form of a statement.
func writeStatement(w io.Writer, v statementView) {
	fmt.Fprintf(w, "Statement for %s (%s, owner %s)\n", v.Account.Number, v.Account.Type, v.Account.Owner)
	fmt.Fprintf(w, "%-20s  %-8s  %12s  %12s\n", "TIMESTAMP", "TYPE", "AMOUNT", "BALANCE")
	for _, tx := range v.Transactions {
		writeTxLine(w, tx)
	}
	fmt.Fprintf(w, "Balance: %s %s\n", v.Account.Balance, v.Account.Currency)
}
