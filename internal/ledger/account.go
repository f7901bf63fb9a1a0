package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/meta"
)

// NewBase opens a plain account with a zero balance in currency.
func NewBase(number, owner, currency string) (Account, error) {
	zero, err := money.NewAmountFromMinorUnits(currency, 0)
	if err != nil {
		return Account{}, fmt.Errorf("%w: currency %q: %v", errs.ErrInvalid, currency, err)
	}
	return Account{Number: number, Owner: owner, Kind: KindBase, Balance: zero, OverdraftLimit: zero}, nil
}

// NewSavings opens a savings account accruing interest at rate (a fraction, e.g. 0.02).
func NewSavings(number, owner, currency string, rate decimal.Decimal) (Account, error) {
	if rate.Sign() < 0 {
		return Account{}, fmt.Errorf("%w: interest rate must be >= 0", errs.ErrInvalid)
	}
	a, err := NewBase(number, owner, currency)
	if err != nil {
		return Account{}, err
	}
	a.Kind = KindSavings
	a.InterestRate = rate
	return a, nil
}

// NewChecking opens a checking account that may overdraw by up to limit.
func NewChecking(number, owner string, limit money.Amount) (Account, error) {
	if limit.Decimal().Sign() < 0 {
		return Account{}, fmt.Errorf("%w: overdraft limit must be >= 0", errs.ErrInvalid)
	}
	a, err := NewBase(number, owner, limit.Curr().Code())
	if err != nil {
		return Account{}, err
	}
	a.Kind = KindChecking
	a.OverdraftLimit = limit
	return a, nil
}

// Currency returns the ISO code all of the account's amounts are held in.
func (a *Account) Currency() string { return a.Balance.Curr().Code() }

// Deposit credits amount and appends a DEPOSIT record carrying the new balance.
func (a *Account) Deposit(amount money.Amount, at time.Time) (Transaction, error) {
	if err := a.checkAmount(amount); err != nil {
		return Transaction{}, err
	}
	next, err := a.Balance.Add(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err)
	}
	return a.record(TxDeposit, amount, next, at), nil
}

// Withdraw debits amount if the variant's floor allows it. A rejected
// withdrawal leaves balance and history untouched.
func (a *Account) Withdraw(amount money.Amount, at time.Time) (Transaction, error) {
	if err := a.checkAmount(amount); err != nil {
		return Transaction{}, err
	}
	switch a.Kind {
	case KindBase, KindSavings:
		if amount.Decimal().Cmp(a.Balance.Decimal()) > 0 {
			return Transaction{}, errs.ErrInsufficientFunds
		}
	case KindChecking:
		available, err := a.Balance.Add(a.OverdraftLimit)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err)
		}
		if amount.Decimal().Cmp(available.Decimal()) > 0 {
			return Transaction{}, errs.ErrOverdraftExceeded
		}
	default:
		return Transaction{}, fmt.Errorf("%w: unknown account kind %q", errs.ErrInvalid, a.Kind)
	}
	next, err := a.Balance.Sub(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err)
	}
	return a.record(TxWithdraw, amount, next, at), nil
}

// ApplyInterest deposits balance × InterestRate, rounded to the currency's
// minor unit. Only savings accounts accrue interest; a non-positive result
// (e.g. zero balance) fails with ErrInvalidAmount like any other deposit.
func (a *Account) ApplyInterest(at time.Time) (Transaction, error) {
	if a.Kind != KindSavings {
		return Transaction{}, fmt.Errorf("%w: interest applies to savings accounts only", errs.ErrInvalid)
	}
	interest, err := a.Balance.Mul(a.InterestRate)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err)
	}
	return a.Deposit(interest.RoundToCurr(), at)
}

// Statement returns the history in order. The slice is a copy.
func (a *Account) Statement() []Transaction {
	out := make([]Transaction, len(a.History))
	copy(out, a.History)
	return out
}

// Floor is the lowest balance the variant permits.
func (a *Account) Floor() money.Amount {
	zero, _ := money.NewAmountFromMinorUnits(a.Currency(), 0)
	if a.Kind == KindChecking {
		if f, err := zero.Sub(a.OverdraftLimit); err == nil {
			return f
		}
	}
	return zero
}

// Clone returns a deep copy of a.
func (a Account) Clone() Account {
	cp := a
	cp.History = a.Statement()
	if a.Metadata != nil {
		cp.Metadata = a.Metadata.Clone()
	}
	return cp
}

// Replay returns the signed sum of history amounts (DEPOSIT positive, WITHDRAW
// negative) and checks each record is well formed. A consistent account has
// Replay() == Balance.
func Replay(currency string, history []Transaction) (money.Amount, error) {
	sum, err := money.NewAmountFromMinorUnits(currency, 0)
	if err != nil {
		return money.Amount{}, fmt.Errorf("%w: currency %q: %v", errs.ErrInvalid, currency, err)
	}
	for i, tx := range history {
		if tx.Amount.Decimal().Sign() <= 0 {
			return money.Amount{}, fmt.Errorf("%w: record %d amount must be > 0", errs.ErrInvalidAmount, i)
		}
		switch tx.Type {
		case TxDeposit:
			sum, err = sum.Add(tx.Amount)
		case TxWithdraw:
			sum, err = sum.Sub(tx.Amount)
		default:
			return money.Amount{}, fmt.Errorf("%w: record %d has type %q", errs.ErrInvalid, i, tx.Type)
		}
		if err != nil {
			return money.Amount{}, fmt.Errorf("%w: record %d: %v", errs.ErrInvalidAmount, i, err)
		}
	}
	return sum, nil
}

// SetMetadata validates and replaces the account's metadata.
func (a *Account) SetMetadata(m map[string]string) error {
	if m == nil {
		a.Metadata = nil
		return nil
	}
	md := meta.New(m)
	if err := md.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalid, err)
	}
	a.Metadata = md
	return nil
}

func (a *Account) checkAmount(amount money.Amount) error {
	if amount.Decimal().Sign() <= 0 {
		return errs.ErrInvalidAmount
	}
	if amount.Curr().Code() != a.Currency() {
		return fmt.Errorf("%w: amount in %s, account in %s", errs.ErrInvalidAmount, amount.Curr().Code(), a.Currency())
	}
	return nil
}

// record applies the new balance and appends the history entry as one unit.
func (a *Account) record(typ TxType, amount, balanceAfter money.Amount, at time.Time) Transaction {
	tx := Transaction{ID: uuid.New(), Timestamp: at.UTC(), Type: typ, Amount: amount, BalanceAfter: balanceAfter}
	a.Balance = balanceAfter
	a.History = append(a.History, tx)
	return tx
}
