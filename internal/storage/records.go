// Package storage defines the persisted document shapes shared by every store
// backend and converts them to and from the ledger domain.
//
// Accounts are encoded as a discriminated union: account_type selects the
// variant and only that variant's parameters are written.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/credential"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/meta"
)

// DefaultCurrency is assumed for account documents without a currency field.
const DefaultCurrency = "USD"

// UserRecord is one entry of the users document.
type UserRecord struct {
	Username      string   `json:"username"`
	Salt          string   `json:"salt"`
	PasswordHash  string   `json:"password_hash"`
	HashAlgorithm string   `json:"hash_algorithm,omitempty"`
	Accounts      []string `json:"accounts"`
}

// TransactionRecord is one history entry of an account document.
type TransactionRecord struct {
	ID           string      `json:"id,omitempty"`
	Timestamp    string      `json:"timestamp"`
	Type         string      `json:"type"`
	Amount       json.Number `json:"amount"`
	BalanceAfter json.Number `json:"balance_after"`
}

// AccountRecord is one entry of the accounts document.
type AccountRecord struct {
	AccountNumber      string              `json:"account_number"`
	Owner              string              `json:"owner"`
	Balance            json.Number         `json:"balance"`
	Currency           string              `json:"currency,omitempty"`
	TransactionHistory []TransactionRecord `json:"transaction_history"`
	AccountType        string              `json:"account_type"`
	InterestRate       json.Number         `json:"interest_rate,omitempty"`
	OverdraftLimit     json.Number         `json:"overdraft_limit,omitempty"`
	Metadata           meta.Metadata       `json:"metadata,omitempty"`
}

// Snapshot is the complete persisted state: both documents plus the last
// issued account sequence number.
type Snapshot struct {
	Users          map[string]UserRecord
	Accounts       map[string]AccountRecord
	LastAccountSeq int64
}

// Empty returns a snapshot with initialized maps.
func Empty() Snapshot {
	return Snapshot{Users: map[string]UserRecord{}, Accounts: map[string]AccountRecord{}}
}

// Clone deep-copies s so stores never share slices with callers.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Users:          make(map[string]UserRecord, len(s.Users)),
		Accounts:       make(map[string]AccountRecord, len(s.Accounts)),
		LastAccountSeq: s.LastAccountSeq,
	}
	for k, u := range s.Users {
		u.Accounts = append([]string(nil), u.Accounts...)
		out.Users[k] = u
	}
	for k, a := range s.Accounts {
		a.TransactionHistory = append([]TransactionRecord(nil), a.TransactionHistory...)
		if a.Metadata != nil {
			a.Metadata = a.Metadata.Clone()
		}
		out.Accounts[k] = a
	}
	return out
}

// EncodeUser converts a domain user to its document form.
func EncodeUser(u ledger.User) UserRecord {
	return UserRecord{
		Username:      u.Username,
		Salt:          hex.EncodeToString(u.Credential.Salt),
		PasswordHash:  hex.EncodeToString(u.Credential.Hash),
		HashAlgorithm: string(u.Credential.Algorithm),
		Accounts:      append([]string{}, u.Accounts...),
	}
}

// DecodeUser converts a users-document entry back to the domain.
func DecodeUser(r UserRecord) (ledger.User, error) {
	salt, err := hex.DecodeString(r.Salt)
	if err != nil {
		return ledger.User{}, fmt.Errorf("user %q: salt: %w", r.Username, err)
	}
	hash, err := hex.DecodeString(r.PasswordHash)
	if err != nil {
		return ledger.User{}, fmt.Errorf("user %q: password_hash: %w", r.Username, err)
	}
	alg := credential.Algorithm(r.HashAlgorithm)
	if alg == "" {
		alg = credential.AlgorithmSHA256
	}
	if _, err := credential.Lookup(string(alg)); err != nil {
		return ledger.User{}, fmt.Errorf("user %q: %w", r.Username, err)
	}
	return ledger.User{
		Username:   r.Username,
		Credential: credential.Credential{Salt: salt, Hash: hash, Algorithm: alg},
		Accounts:   append([]string(nil), r.Accounts...),
	}, nil
}

// EncodeAccount converts a domain account to its document form.
func EncodeAccount(a ledger.Account) AccountRecord {
	r := AccountRecord{
		AccountNumber:      a.Number,
		Owner:              a.Owner,
		Balance:            amountNumber(a.Balance),
		Currency:           a.Currency(),
		TransactionHistory: make([]TransactionRecord, 0, len(a.History)),
		AccountType:        string(a.Kind),
	}
	switch a.Kind {
	case ledger.KindSavings:
		r.InterestRate = json.Number(a.InterestRate.String())
	case ledger.KindChecking:
		r.OverdraftLimit = amountNumber(a.OverdraftLimit)
	}
	if len(a.Metadata) > 0 {
		r.Metadata = a.Metadata.Clone()
	}
	for _, tx := range a.History {
		r.TransactionHistory = append(r.TransactionHistory, TransactionRecord{
			ID:           tx.ID.String(),
			Timestamp:    tx.Timestamp.UTC().Format(time.RFC3339Nano),
			Type:         string(tx.Type),
			Amount:       amountNumber(tx.Amount),
			BalanceAfter: amountNumber(tx.BalanceAfter),
		})
	}
	return r
}

// DecodeAccount rebuilds the variant named by account_type and checks that the
// stored balance equals the replayed history.
func DecodeAccount(r AccountRecord) (ledger.Account, error) {
	curr := r.Currency
	if curr == "" {
		curr = DefaultCurrency
	}
	var (
		a   ledger.Account
		err error
	)
	switch ledger.Kind(r.AccountType) {
	case ledger.KindBase:
		a, err = ledger.NewBase(r.AccountNumber, r.Owner, curr)
	case ledger.KindSavings:
		var rate decimal.Decimal
		if r.InterestRate != "" {
			rate, err = decimal.Parse(string(r.InterestRate))
			if err != nil {
				return ledger.Account{}, fmt.Errorf("account %s: interest_rate: %w", r.AccountNumber, err)
			}
		}
		a, err = ledger.NewSavings(r.AccountNumber, r.Owner, curr, rate)
	case ledger.KindChecking:
		limit, perr := parseAmount(curr, r.OverdraftLimit)
		if perr != nil {
			return ledger.Account{}, fmt.Errorf("account %s: overdraft_limit: %w", r.AccountNumber, perr)
		}
		a, err = ledger.NewChecking(r.AccountNumber, r.Owner, limit)
	default:
		return ledger.Account{}, fmt.Errorf("account %s: unknown account_type %q", r.AccountNumber, r.AccountType)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("account %s: %w", r.AccountNumber, err)
	}

	for i, tr := range r.TransactionHistory {
		tx, err := decodeTransaction(curr, tr)
		if err != nil {
			return ledger.Account{}, fmt.Errorf("account %s: transaction %d: %w", r.AccountNumber, i, err)
		}
		a.History = append(a.History, tx)
	}
	if a.Balance, err = parseAmount(curr, r.Balance); err != nil {
		return ledger.Account{}, fmt.Errorf("account %s: balance: %w", r.AccountNumber, err)
	}
	legacy := r.Currency == ""
	if legacy {
		// float-written documents carry binary drift below the minor unit
		for i := range a.History {
			a.History[i].Amount = a.History[i].Amount.RoundToCurr()
			a.History[i].BalanceAfter = a.History[i].BalanceAfter.RoundToCurr()
		}
		a.Balance = a.Balance.RoundToCurr()
	}
	sum, err := ledger.Replay(curr, a.History)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("account %s: %w", r.AccountNumber, err)
	}
	if sum.Decimal().Cmp(a.Balance.Decimal()) != 0 {
		return ledger.Account{}, fmt.Errorf("account %s: balance %s does not match history %s", r.AccountNumber, a.Balance.Decimal(), sum.Decimal())
	}
	if len(r.Metadata) > 0 {
		a.Metadata = r.Metadata.Clone()
	}
	return a, nil
}

func decodeTransaction(curr string, tr TransactionRecord) (ledger.Transaction, error) {
	ts, err := time.Parse(time.RFC3339Nano, tr.Timestamp)
	if err != nil {
		// documents written by older drivers used naive ISO-8601 timestamps
		ts, err = time.Parse("2006-01-02T15:04:05.999999999", tr.Timestamp)
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("timestamp: %w", err)
		}
	}
	id := uuid.Nil
	if tr.ID != "" {
		if id, err = uuid.Parse(tr.ID); err != nil {
			return ledger.Transaction{}, fmt.Errorf("id: %w", err)
		}
	} else {
		id = uuid.New()
	}
	amount, err := parseAmount(curr, tr.Amount)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	after, err := parseAmount(curr, tr.BalanceAfter)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("balance_after: %w", err)
	}
	return ledger.Transaction{ID: id, Timestamp: ts.UTC(), Type: ledger.TxType(tr.Type), Amount: amount, BalanceAfter: after}, nil
}

// Encode builds a snapshot from the domain maps.
func Encode(users map[string]ledger.User, accounts map[string]ledger.Account, lastSeq int64) Snapshot {
	s := Snapshot{
		Users:          make(map[string]UserRecord, len(users)),
		Accounts:       make(map[string]AccountRecord, len(accounts)),
		LastAccountSeq: lastSeq,
	}
	for k, u := range users {
		s.Users[k] = EncodeUser(u)
	}
	for k, a := range accounts {
		s.Accounts[k] = EncodeAccount(a)
	}
	return s
}

// Decode rebuilds the domain maps and enforces referential integrity: every
// account a user lists must exist and name that user as owner, and every
// account must be listed by its owner. The returned sequence is the larger of
// the stored one and the highest numeric account number.
func Decode(s Snapshot) (map[string]ledger.User, map[string]ledger.Account, int64, error) {
	users := make(map[string]ledger.User, len(s.Users))
	accounts := make(map[string]ledger.Account, len(s.Accounts))
	seq := s.LastAccountSeq

	for _, key := range sortedKeys(s.Accounts) {
		r := s.Accounts[key]
		if r.AccountNumber != key {
			return nil, nil, 0, fmt.Errorf("account key %q does not match account_number %q", key, r.AccountNumber)
		}
		a, err := DecodeAccount(r)
		if err != nil {
			return nil, nil, 0, err
		}
		accounts[key] = a
		if n, err := strconv.ParseInt(key, 10, 64); err == nil && n > seq {
			seq = n
		}
	}

	listed := make(map[string]string, len(accounts))
	for _, key := range sortedKeys(s.Users) {
		r := s.Users[key]
		if r.Username != key {
			return nil, nil, 0, fmt.Errorf("user key %q does not match username %q", key, r.Username)
		}
		u, err := DecodeUser(r)
		if err != nil {
			return nil, nil, 0, err
		}
		for _, num := range u.Accounts {
			a, ok := accounts[num]
			if !ok {
				return nil, nil, 0, fmt.Errorf("user %q lists unknown account %s", key, num)
			}
			if a.Owner != key {
				return nil, nil, 0, fmt.Errorf("account %s is owned by %q but listed by %q", num, a.Owner, key)
			}
			if prev, dup := listed[num]; dup {
				return nil, nil, 0, fmt.Errorf("account %s listed twice (by %q and %q)", num, prev, key)
			}
			listed[num] = key
		}
		users[key] = u
	}
	for num, a := range accounts {
		if _, ok := listed[num]; !ok {
			return nil, nil, 0, fmt.Errorf("account %s is not listed by its owner %q", num, a.Owner)
		}
	}
	return users, accounts, seq, nil
}

func amountNumber(a money.Amount) json.Number { return json.Number(a.Decimal().String()) }

func parseAmount(curr string, n json.Number) (money.Amount, error) {
	if n == "" {
		return money.NewAmountFromMinorUnits(curr, 0)
	}
	return money.ParseAmount(curr, string(n))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
