// Package sqlite persists snapshots in a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/meta"
	"github.com/tinoosan/bankledger/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const seqKey = "last_account_seq"

// Store provides durable storage for ledger snapshots.
// Uses SQLite with WAL mode; a single connection serializes writers.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies the
// schema. Safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ready pings the database.
func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Load reads the whole state inside one read transaction.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Snapshot{}, errs.Storage("load", err)
	}
	defer tx.Rollback()
	snap, err := load(ctx, tx)
	if err != nil {
		return storage.Snapshot{}, errs.Storage("load", err)
	}
	return snap, nil
}

func load(ctx context.Context, tx *sql.Tx) (storage.Snapshot, error) {
	snap := storage.Empty()

	rows, err := tx.QueryContext(ctx, `SELECT username, salt, password_hash, hash_algorithm, accounts FROM users`)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var u storage.UserRecord
		var list string
		if err := rows.Scan(&u.Username, &u.Salt, &u.PasswordHash, &u.HashAlgorithm, &list); err != nil {
			rows.Close()
			return snap, err
		}
		if err := json.Unmarshal([]byte(list), &u.Accounts); err != nil {
			rows.Close()
			return snap, fmt.Errorf("user %q accounts: %w", u.Username, err)
		}
		snap.Users[u.Username] = u
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT account_number, owner, balance, currency, account_type, interest_rate, overdraft_limit, metadata
		FROM accounts
	`)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var a storage.AccountRecord
		var balance string
		var rate, limit, md sql.NullString
		if err := rows.Scan(&a.AccountNumber, &a.Owner, &balance, &a.Currency, &a.AccountType, &rate, &limit, &md); err != nil {
			rows.Close()
			return snap, err
		}
		a.Balance = json.Number(balance)
		if rate.Valid {
			a.InterestRate = json.Number(rate.String)
		}
		if limit.Valid {
			a.OverdraftLimit = json.Number(limit.String)
		}
		if md.Valid && md.String != "" {
			var m meta.Metadata
			if err := m.UnmarshalJSON([]byte(md.String)); err != nil {
				rows.Close()
				return snap, fmt.Errorf("account %s metadata: %w", a.AccountNumber, err)
			}
			if len(m) > 0 {
				a.Metadata = m
			}
		}
		a.TransactionHistory = []storage.TransactionRecord{}
		snap.Accounts[a.AccountNumber] = a
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT account_number, id, ts, type, amount, balance_after
		FROM transactions
		ORDER BY account_number, seq
	`)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var num, amount, after string
		var tr storage.TransactionRecord
		if err := rows.Scan(&num, &tr.ID, &tr.Timestamp, &tr.Type, &amount, &after); err != nil {
			rows.Close()
			return snap, err
		}
		a, ok := snap.Accounts[num]
		if !ok {
			continue
		}
		tr.Amount, tr.BalanceAfter = json.Number(amount), json.Number(after)
		a.TransactionHistory = append(a.TransactionHistory, tr)
		snap.Accounts[num] = a
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, seqKey).Scan(&snap.LastAccountSeq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return snap, err
	}
	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

// Save replaces the stored state with snap in a single transaction.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("save", err)
	}
	defer tx.Rollback()
	if err := save(ctx, tx, snap); err != nil {
		return errs.Storage("save", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Storage("save", err)
	}
	return nil
}

func save(ctx context.Context, tx *sql.Tx, snap storage.Snapshot) error {
	for _, stmt := range []string{`DELETE FROM transactions`, `DELETE FROM accounts`, `DELETE FROM users`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insUser, err := tx.PrepareContext(ctx, `
		INSERT INTO users (username, salt, password_hash, hash_algorithm, accounts)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer insUser.Close()
	for _, u := range snap.Users {
		list := u.Accounts
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return err
		}
		if _, err := insUser.ExecContext(ctx, u.Username, u.Salt, u.PasswordHash, u.HashAlgorithm, string(b)); err != nil {
			return fmt.Errorf("insert user %q: %w", u.Username, err)
		}
	}

	insAccount, err := tx.PrepareContext(ctx, `
		INSERT INTO accounts (account_number, owner, balance, currency, account_type, interest_rate, overdraft_limit, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer insAccount.Close()
	insTx, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (account_number, seq, id, ts, type, amount, balance_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer insTx.Close()

	for _, a := range snap.Accounts {
		var md sql.NullString
		if len(a.Metadata) > 0 {
			b, err := a.Metadata.MarshalStableJSON()
			if err != nil {
				return err
			}
			md = sql.NullString{String: string(b), Valid: true}
		}
		curr := a.Currency
		if curr == "" {
			curr = storage.DefaultCurrency
		}
		if _, err := insAccount.ExecContext(ctx, a.AccountNumber, a.Owner, a.Balance.String(), curr, a.AccountType,
			nullable(a.InterestRate), nullable(a.OverdraftLimit), md); err != nil {
			return fmt.Errorf("insert account %s: %w", a.AccountNumber, err)
		}
		for i, tr := range a.TransactionHistory {
			if _, err := insTx.ExecContext(ctx, a.AccountNumber, i, tr.ID, tr.Timestamp, tr.Type, tr.Amount.String(), tr.BalanceAfter.String()); err != nil {
				return fmt.Errorf("insert transaction %s/%d: %w", a.AccountNumber, i, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, seqKey, snap.LastAccountSeq)
	return err
}

func nullable(n json.Number) sql.NullString {
	if n == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: n.String(), Valid: true}
}
