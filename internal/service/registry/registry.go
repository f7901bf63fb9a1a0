// Package registry owns the user and account maps: registration, login,
// opening accounts and routing balance operations to the owning account.
// Every mutation is flushed to the Store before it is acknowledged; when the
// flush fails the in-memory change is undone and a storage error returned.
package registry

import (
    "context"
    "fmt"
    "log/slog"
    "sync"
    "time"

    "github.com/govalues/decimal"
    "github.com/govalues/money"

    "github.com/tinoosan/bankledger/internal/credential"
    "github.com/tinoosan/bankledger/internal/errs"
    "github.com/tinoosan/bankledger/internal/handle"
    "github.com/tinoosan/bankledger/internal/ledger"
    "github.com/tinoosan/bankledger/internal/meta"
    "github.com/tinoosan/bankledger/internal/storage"
)

// Store loads and saves the complete persisted state.
type Store interface {
    Load(ctx context.Context) (storage.Snapshot, error)
    Save(ctx context.Context, snap storage.Snapshot) error
}

// Options configure a Registry. Zero values pick USD, SHA-256, time.Now and
// slog.Default().
type Options struct {
    Currency string
    Hasher   credential.Hasher
    Now      func() time.Time
    Logger   *slog.Logger
}

// OpenRequest describes a new account. InterestRate only applies to savings
// and OverdraftLimit only to checking.
type OpenRequest struct {
    Kind           ledger.Kind
    InterestRate   decimal.Decimal
    OverdraftLimit decimal.Decimal
    Metadata       map[string]string
}

// Registry is safe for concurrent use; one mutex covers lookup, mutation and
// the flush that follows.
type Registry struct {
    mu       sync.Mutex
    store    Store
    users    map[string]ledger.User
    accounts map[string]ledger.Account
    seq      int64

    currency string
    hasher   credential.Hasher
    now      func() time.Time
    log      *slog.Logger
}

// New returns an empty registry over store. Call Load to read existing state.
func New(store Store, opts Options) (*Registry, error) {
    if store == nil { return nil, fmt.Errorf("%w: store is required", errs.ErrInvalid) }
    if opts.Currency == "" { opts.Currency = storage.DefaultCurrency }
    if _, err := money.NewAmountFromMinorUnits(opts.Currency, 0); err != nil {
        return nil, fmt.Errorf("%w: currency %q: %v", errs.ErrInvalid, opts.Currency, err)
    }
    if opts.Hasher == nil { opts.Hasher = credential.SHA256{} }
    if opts.Now == nil { opts.Now = time.Now }
    if opts.Logger == nil { opts.Logger = slog.Default() }
    return &Registry{
        store:    store,
        users:    map[string]ledger.User{},
        accounts: map[string]ledger.Account{},
        currency: opts.Currency,
        hasher:   opts.Hasher,
        now:      opts.Now,
        log:      opts.Logger,
    }, nil
}

// Currency is the currency new accounts are opened in.
func (r *Registry) Currency() string { return r.currency }

// Load replaces the in-memory state with the store's. Corrupt data (unknown
// account types, dangling references, balances that disagree with history)
// fails with a storage error and leaves the current state untouched.
func (r *Registry) Load(ctx context.Context) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    snap, err := r.store.Load(ctx)
    if err != nil {
        return errs.Storage("load", err)
    }
    users, accounts, seq, err := storage.Decode(snap)
    if err != nil {
        r.log.Error("stored state rejected", "err", err)
        return errs.Storage("load", err)
    }
    r.users, r.accounts, r.seq = users, accounts, seq
    r.log.Info("registry loaded", "users", len(users), "accounts", len(accounts), "last_account_seq", seq)
    return nil
}

// Persist flushes the full state.
func (r *Registry) Persist(ctx context.Context) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.persistLocked(ctx)
}

func (r *Registry) persistLocked(ctx context.Context) error {
    if err := r.store.Save(ctx, storage.Encode(r.users, r.accounts, r.seq)); err != nil {
        return errs.Storage("save", err)
    }
    return nil
}

// commitLocked persists and runs undo when that fails, then saves the restored
// state so a backend that failed part way still holds a loadable snapshot.
func (r *Registry) commitLocked(ctx context.Context, op string, undo func()) error {
    if err := r.persistLocked(ctx); err != nil {
        undo()
        r.log.Error("persist failed, change rolled back", "op", op, "err", err)
        if rerr := r.persistLocked(ctx); rerr != nil {
            r.log.Error("re-saving rolled back state failed", "op", op, "err", rerr)
        }
        return err
    }
    return nil
}

// RegisterUser creates a user with a freshly salted credential.
func (r *Registry) RegisterUser(ctx context.Context, username, password string) (ledger.User, error) {
    username = handle.Normalize(username)
    if !handle.IsValid(username) {
        return ledger.User{}, fmt.Errorf("%w: username must be 1-64 letters, digits, '_', '.' or '-'", errs.ErrInvalid)
    }
    cred, err := credential.New(password, r.hasher)
    if err != nil {
        return ledger.User{}, err
    }

    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.users[username]; exists {
        return ledger.User{}, errs.ErrDuplicateUser
    }
    u := ledger.User{Username: username, Credential: cred, Accounts: []string{}}
    r.users[username] = u
    if err := r.commitLocked(ctx, "register_user", func() { delete(r.users, username) }); err != nil {
        return ledger.User{}, err
    }
    r.log.Info("user registered", "username", username, "hash_algorithm", string(cred.Algorithm))
    return u.Clone(), nil
}

// Authenticate checks a username/password pair. An unknown user and a wrong
// password are indistinguishable to the caller.
func (r *Registry) Authenticate(_ context.Context, username, password string) (ledger.User, error) {
    username = handle.Normalize(username)
    r.mu.Lock()
    u, ok := r.users[username]
    r.mu.Unlock()
    if !ok || !u.Credential.Verify(password) {
        r.log.Warn("authentication failed", "username", username)
        return ledger.User{}, errs.ErrInvalidCredentials
    }
    return u.Clone(), nil
}

// User returns the named user.
func (r *Registry) User(_ context.Context, username string) (ledger.User, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    u, ok := r.users[handle.Normalize(username)]
    if !ok {
        return ledger.User{}, errs.ErrNotFound
    }
    return u.Clone(), nil
}

// OpenAccount creates an account of req.Kind owned by username. Numbers come
// from a monotonic sequence so they are never reused.
func (r *Registry) OpenAccount(ctx context.Context, username string, req OpenRequest) (ledger.Account, error) {
    username = handle.Normalize(username)
    r.mu.Lock()
    defer r.mu.Unlock()
    owner, ok := r.users[username]
    if !ok {
        return ledger.Account{}, errs.ErrNotFound
    }

    number := fmt.Sprintf("%06d", r.seq+1)
    a, err := r.newAccount(number, username, req)
    if err != nil {
        return ledger.Account{}, err
    }
    if req.Metadata != nil {
        if err := a.SetMetadata(req.Metadata); err != nil {
            return ledger.Account{}, err
        }
    }

    prevOwner := owner.Clone()
    owner.Accounts = append(owner.Accounts, number)
    r.users[username] = owner
    r.accounts[number] = a
    r.seq++
    undo := func() {
        r.seq--
        delete(r.accounts, number)
        r.users[username] = prevOwner
    }
    if err := r.commitLocked(ctx, "open_account", undo); err != nil {
        return ledger.Account{}, err
    }
    r.log.Info("account opened", "username", username, "account_number", number, "account_type", string(a.Kind))
    return a.Clone(), nil
}

func (r *Registry) newAccount(number, owner string, req OpenRequest) (ledger.Account, error) {
    if req.Kind != ledger.KindSavings && !req.InterestRate.IsZero() {
        return ledger.Account{}, fmt.Errorf("%w: interest_rate only applies to savings accounts", errs.ErrInvalid)
    }
    if req.Kind != ledger.KindChecking && !req.OverdraftLimit.IsZero() {
        return ledger.Account{}, fmt.Errorf("%w: overdraft_limit only applies to checking accounts", errs.ErrInvalid)
    }
    switch req.Kind {
    case ledger.KindBase:
        return ledger.NewBase(number, owner, r.currency)
    case ledger.KindSavings:
        return ledger.NewSavings(number, owner, r.currency, req.InterestRate)
    case ledger.KindChecking:
        limit, err := money.ParseAmount(r.currency, req.OverdraftLimit.String())
        if err != nil {
            return ledger.Account{}, fmt.Errorf("%w: overdraft_limit: %v", errs.ErrInvalid, err)
        }
        return ledger.NewChecking(number, owner, limit)
    default:
        return ledger.Account{}, fmt.Errorf("%w: unknown account type %q", errs.ErrInvalid, req.Kind)
    }
}

// AccountsFor returns the user's accounts in the order they were opened.
func (r *Registry) AccountsFor(_ context.Context, username string) ([]ledger.Account, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    u, ok := r.users[handle.Normalize(username)]
    if !ok {
        return nil, errs.ErrNotFound
    }
    out := make([]ledger.Account, 0, len(u.Accounts))
    for _, num := range u.Accounts {
        if a, ok := r.accounts[num]; ok {
            out = append(out, a.Clone())
        }
    }
    return out, nil
}

// Account returns one of the user's accounts.
func (r *Registry) Account(_ context.Context, username, number string) (ledger.Account, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    a, err := r.ownedLocked(username, number)
    if err != nil {
        return ledger.Account{}, err
    }
    return a.Clone(), nil
}

func (r *Registry) ownedLocked(username, number string) (ledger.Account, error) {
    a, ok := r.accounts[number]
    if !ok {
        return ledger.Account{}, errs.ErrNotFound
    }
    if a.Owner != handle.Normalize(username) {
        return ledger.Account{}, errs.ErrForbidden
    }
    return a, nil
}

// Deposit credits amount to the account.
func (r *Registry) Deposit(ctx context.Context, username, number string, amount decimal.Decimal) (ledger.Transaction, error) {
    return r.mutate(ctx, "deposit", username, number, func(a *ledger.Account, at time.Time) (ledger.Transaction, error) {
        amt, err := amountIn(a.Currency(), amount)
        if err != nil {
            return ledger.Transaction{}, err
        }
        return a.Deposit(amt, at)
    })
}

// Withdraw debits amount from the account, subject to the account's floor.
func (r *Registry) Withdraw(ctx context.Context, username, number string, amount decimal.Decimal) (ledger.Transaction, error) {
    return r.mutate(ctx, "withdraw", username, number, func(a *ledger.Account, at time.Time) (ledger.Transaction, error) {
        amt, err := amountIn(a.Currency(), amount)
        if err != nil {
            return ledger.Transaction{}, err
        }
        return a.Withdraw(amt, at)
    })
}

// ApplyInterest credits one period of interest to a savings account.
func (r *Registry) ApplyInterest(ctx context.Context, username, number string) (ledger.Transaction, error) {
    return r.mutate(ctx, "apply_interest", username, number, func(a *ledger.Account, at time.Time) (ledger.Transaction, error) {
        return a.ApplyInterest(at)
    })
}

func (r *Registry) mutate(ctx context.Context, op, username, number string, fn func(*ledger.Account, time.Time) (ledger.Transaction, error)) (ledger.Transaction, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    a, err := r.ownedLocked(username, number)
    if err != nil {
        return ledger.Transaction{}, err
    }
    prev := a.Clone()
    tx, err := fn(&a, r.now())
    if err != nil {
        r.log.Info("operation rejected", "op", op, "account_number", number, "err", err)
        return ledger.Transaction{}, err
    }
    r.accounts[number] = a
    if err := r.commitLocked(ctx, op, func() { r.accounts[number] = prev }); err != nil {
        return ledger.Transaction{}, err
    }
    r.log.Info("transaction recorded", "op", op, "account_number", number,
        "amount", tx.Amount.Decimal().String(), "balance", tx.BalanceAfter.Decimal().String())
    return tx, nil
}

// Statement returns the account's history, oldest first.
func (r *Registry) Statement(_ context.Context, username, number string) ([]ledger.Transaction, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    a, err := r.ownedLocked(username, number)
    if err != nil {
        return nil, err
    }
    return a.Statement(), nil
}

// UpdateMetadata merges patch into the account's metadata; an empty value
// removes the key.
func (r *Registry) UpdateMetadata(ctx context.Context, username, number string, patch map[string]string) (ledger.Account, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    a, err := r.ownedLocked(username, number)
    if err != nil {
        return ledger.Account{}, err
    }
    p := meta.New(patch)
    if err := p.Validate(); err != nil {
        return ledger.Account{}, fmt.Errorf("%w: %v", errs.ErrInvalid, err)
    }
    prev := a.Clone()
    md := meta.New(a.Metadata)
    md.Merge(p)
    for k, v := range p {
        if v != "" && md[k] != v {
            return ledger.Account{}, fmt.Errorf("%w: metadata too many pairs", errs.ErrInvalid)
        }
    }
    if err := a.SetMetadata(md); err != nil {
        return ledger.Account{}, err
    }
    if len(a.Metadata) == 0 {
        a.Metadata = nil
    }
    r.accounts[number] = a
    if err := r.commitLocked(ctx, "update_metadata", func() { r.accounts[number] = prev }); err != nil {
        return ledger.Account{}, err
    }
    return a.Clone(), nil
}

func amountIn(currency string, d decimal.Decimal) (money.Amount, error) {
    if d.Sign() <= 0 {
        return money.Amount{}, errs.ErrInvalidAmount
    }
    amt, err := money.ParseAmount(currency, d.String())
    if err != nil {
        return money.Amount{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err)
    }
    return amt, nil
}
