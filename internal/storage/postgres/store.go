package postgres

// Package postgres provides a pgx-backed snapshot store.
//
// Save rewrites every table inside one transaction, so readers either see the
// previous snapshot or the new one. Amounts are kept as decimal text to avoid
// any float conversion between the domain and the database.

import (
    "context"
    _ "embed"
    "encoding/json"
    "errors"
    "fmt"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"

    "github.com/tinoosan/bankledger/internal/errs"
    "github.com/tinoosan/bankledger/internal/meta"
    "github.com/tinoosan/bankledger/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const seqKey = "last_account_seq"

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
    pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string and
// creates the tables when they are missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
    cfg, err := pgxpool.ParseConfig(dsn)
    if err != nil { return nil, err }
    pool, err := pgxpool.NewWithConfig(ctx, cfg)
    if err != nil { return nil, err }
    // Verify connection
    if err := pool.Ping(ctx); err != nil { pool.Close(); return nil, err }
    if _, err := pool.Exec(ctx, schemaSQL); err != nil {
        pool.Close()
        return nil, fmt.Errorf("apply schema: %w", err)
    }
    return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error { if s.pool != nil { s.pool.Close() }; return nil }

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Load reads the whole state in a read-only repeatable-read transaction.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
    tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
    if err != nil { return storage.Snapshot{}, errs.Storage("load", err) }
    defer func() { _ = tx.Rollback(ctx) }()
    snap, err := load(ctx, tx)
    if err != nil { return storage.Snapshot{}, errs.Storage("load", err) }
    return snap, nil
}

func load(ctx context.Context, tx pgx.Tx) (storage.Snapshot, error) {
    snap := storage.Empty()

    rows, err := tx.Query(ctx, `select username, salt, password_hash, hash_algorithm, accounts from bank_users`)
    if err != nil { return snap, err }
    for rows.Next() {
        var u storage.UserRecord
        var list string
        if err := rows.Scan(&u.Username, &u.Salt, &u.PasswordHash, &u.HashAlgorithm, &list); err != nil { rows.Close(); return snap, err }
        if err := json.Unmarshal([]byte(list), &u.Accounts); err != nil { rows.Close(); return snap, fmt.Errorf("user %q accounts: %w", u.Username, err) }
        snap.Users[u.Username] = u
    }
    rows.Close()
    if err := rows.Err(); err != nil { return snap, err }

    rows, err = tx.Query(ctx, `
        select account_number, owner, balance, currency, account_type, interest_rate, overdraft_limit, metadata
        from bank_accounts
    `)
    if err != nil { return snap, err }
    for rows.Next() {
        var a storage.AccountRecord
        var balance string
        var rate, limit *string
        var mdBytes []byte
        if err := rows.Scan(&a.AccountNumber, &a.Owner, &balance, &a.Currency, &a.AccountType, &rate, &limit, &mdBytes); err != nil { rows.Close(); return snap, err }
        a.Balance = json.Number(balance)
        if rate != nil { a.InterestRate = json.Number(*rate) }
        if limit != nil { a.OverdraftLimit = json.Number(*limit) }
        if len(mdBytes) > 0 {
            var m meta.Metadata
            if err := m.UnmarshalJSON(mdBytes); err != nil { rows.Close(); return snap, fmt.Errorf("account %s metadata: %w", a.AccountNumber, err) }
            if len(m) > 0 { a.Metadata = m }
        }
        a.TransactionHistory = []storage.TransactionRecord{}
        snap.Accounts[a.AccountNumber] = a
    }
    rows.Close()
    if err := rows.Err(); err != nil { return snap, err }

    rows, err = tx.Query(ctx, `
        select account_number, id, ts, type, amount, balance_after
        from bank_transactions
        order by account_number, seq
    `)
    if err != nil { return snap, err }
    for rows.Next() {
        var num, amount, after string
        var tr storage.TransactionRecord
        if err := rows.Scan(&num, &tr.ID, &tr.Timestamp, &tr.Type, &amount, &after); err != nil { rows.Close(); return snap, err }
        a, ok := snap.Accounts[num]
        if !ok { continue }
        tr.Amount, tr.BalanceAfter = json.Number(amount), json.Number(after)
        a.TransactionHistory = append(a.TransactionHistory, tr)
        snap.Accounts[num] = a
    }
    rows.Close()
    if err := rows.Err(); err != nil { return snap, err }

    err = tx.QueryRow(ctx, `select value from bank_meta where key = $1`, seqKey).Scan(&snap.LastAccountSeq)
    if err != nil && !errors.Is(err, pgx.ErrNoRows) { return snap, err }
    return snap, nil
}

// Save replaces the stored state with snap in a single transaction.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return errs.Storage("save", err) }
    defer func() { _ = tx.Rollback(ctx) }()
    if err := save(ctx, tx, snap); err != nil { return errs.Storage("save", err) }
    if err := tx.Commit(ctx); err != nil { return errs.Storage("save", err) }
    return nil
}

func save(ctx context.Context, tx pgx.Tx, snap storage.Snapshot) error {
    if _, err := tx.Exec(ctx, `delete from bank_transactions`); err != nil { return err }
    if _, err := tx.Exec(ctx, `delete from bank_accounts`); err != nil { return err }
    if _, err := tx.Exec(ctx, `delete from bank_users`); err != nil { return err }

    b := &pgx.Batch{}
    for _, u := range snap.Users {
        list, err := json.Marshal(nonNil(u.Accounts))
        if err != nil { return err }
        b.Queue(`
            insert into bank_users (username, salt, password_hash, hash_algorithm, accounts)
            values ($1,$2,$3,$4,$5)
        `, u.Username, u.Salt, u.PasswordHash, u.HashAlgorithm, string(list))
    }
    for _, a := range snap.Accounts {
        var md []byte
        if len(a.Metadata) > 0 {
            var err error
            if md, err = a.Metadata.MarshalStableJSON(); err != nil { return err }
        }
        b.Queue(`
            insert into bank_accounts (account_number, owner, balance, currency, account_type, interest_rate, overdraft_limit, metadata)
            values ($1,$2,$3,$4,$5,$6,$7,$8)
        `, a.AccountNumber, a.Owner, a.Balance.String(), currencyOf(a), a.AccountType, optional(a.InterestRate), optional(a.OverdraftLimit), md)
        for i, tr := range a.TransactionHistory {
            b.Queue(`
                insert into bank_transactions (account_number, seq, id, ts, type, amount, balance_after)
                values ($1,$2,$3,$4,$5,$6,$7)
            `, a.AccountNumber, i, tr.ID, tr.Timestamp, tr.Type, tr.Amount.String(), tr.BalanceAfter.String())
        }
    }
    b.Queue(`
        insert into bank_meta (key, value) values ($1,$2)
        on conflict (key) do update set value = excluded.value
    `, seqKey, snap.LastAccountSeq)

    br := tx.SendBatch(ctx, b)
    for i := 0; i < b.Len(); i++ {
        if _, err := br.Exec(); err != nil { br.Close(); return fmt.Errorf("batch statement %d: %w", i, err) }
    }
    return br.Close()
}

func optional(n json.Number) *string {
    if n == "" { return nil }
    s := n.String()
    return &s
}

func currencyOf(a storage.AccountRecord) string {
    if a.Currency == "" { return storage.DefaultCurrency }
    return a.Currency
}

func nonNil(s []string) []string {
    if s == nil { return []string{} }
    return s
}
