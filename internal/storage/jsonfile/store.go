// Package jsonfile persists snapshots as three pretty-printed JSON documents:
// users keyed by username, accounts keyed by account number, and a small meta
// document carrying the account sequence.
//
// Each file is replaced atomically: the document is written to path+".tmp",
// synced, then renamed over the original.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/storage"
)

// Paths names the three documents.
type Paths struct {
	Users    string
	Accounts string
	Meta     string
}

// DefaultPaths returns users.json, accounts.json and meta.json inside dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Users:    filepath.Join(dir, "users.json"),
		Accounts: filepath.Join(dir, "accounts.json"),
		Meta:     filepath.Join(dir, "meta.json"),
	}
}

type metaDoc struct {
	LastAccountSeq int64 `json:"last_account_seq"`
}

// Store reads and writes the documents named by Paths.
type Store struct {
	paths Paths
}

// New returns a store over p. Files are created on the first Save.
func New(p Paths) *Store { return &Store{paths: p} }

// Paths returns the document locations.
func (s *Store) Paths() Paths { return s.paths }

// Load reads all three documents. A missing file reads as empty.
func (s *Store) Load(_ context.Context) (storage.Snapshot, error) {
	snap := storage.Empty()
	if err := readDoc(s.paths.Users, &snap.Users); err != nil {
		return storage.Snapshot{}, errs.Storage("load users", err)
	}
	if err := readDoc(s.paths.Accounts, &snap.Accounts); err != nil {
		return storage.Snapshot{}, errs.Storage("load accounts", err)
	}
	var m metaDoc
	if err := readDoc(s.paths.Meta, &m); err != nil {
		return storage.Snapshot{}, errs.Storage("load meta", err)
	}
	snap.LastAccountSeq = m.LastAccountSeq
	if snap.Users == nil {
		snap.Users = map[string]storage.UserRecord{}
	}
	if snap.Accounts == nil {
		snap.Accounts = map[string]storage.AccountRecord{}
	}
	return snap, nil
}

// Save rewrites all three documents. Accounts are written before users so a
// crash in between leaves accounts that no user lists rather than dangling
// references; Load reports either case.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return errs.Storage("save", err)
	}
	users := snap.Users
	if users == nil {
		users = map[string]storage.UserRecord{}
	}
	accounts := snap.Accounts
	if accounts == nil {
		accounts = map[string]storage.AccountRecord{}
	}
	if err := writeDoc(s.paths.Accounts, accounts); err != nil {
		return errs.Storage("save accounts", err)
	}
	if err := writeDoc(s.paths.Users, users); err != nil {
		return errs.Storage("save users", err)
	}
	if err := writeDoc(s.paths.Meta, metaDoc{LastAccountSeq: snap.LastAccountSeq}); err != nil {
		return errs.Storage("save meta", err)
	}
	return nil
}

// Ready checks that the users document is readable or absent.
func (s *Store) Ready(context.Context) error {
	_, err := os.Stat(s.paths.Users)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func readDoc(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeDoc(path string, v any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
