package dictionary

import (
	"strings"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// KindDef describes one account variant for clients choosing what to open.
type KindDef struct {
	Code     string      `json:"code"`
	Kind     ledger.Kind `json:"account_type"`
	Label    string      `json:"label"`
	Params   []string    `json:"params"`
	Floor    string      `json:"floor"`
	Interest bool        `json:"interest"`
}

var curated = []KindDef{
	{Code: "base", Kind: ledger.KindBase, Label: "Account", Params: []string{}, Floor: "zero"},
	{Code: "savings", Kind: ledger.KindSavings, Label: "Savings Account", Params: []string{"interest_rate"}, Floor: "zero", Interest: true},
	{Code: "checking", Kind: ledger.KindChecking, Label: "Checking Account", Params: []string{"overdraft_limit"}, Floor: "-overdraft_limit"},
}

// Kinds returns the catalog in display order.
func Kinds() []KindDef {
	out := make([]KindDef, len(curated))
	copy(out, curated)
	return out
}

// ParseKind accepts a short code ("savings"), the persisted tag
// ("SavingsAccount") or the label, case-insensitively.
func ParseKind(s string) (ledger.Kind, bool) {
	s = strings.TrimSpace(s)
	for _, d := range curated {
		if strings.EqualFold(s, d.Code) || strings.EqualFold(s, string(d.Kind)) || strings.EqualFold(s, d.Label) {
			return d.Kind, true
		}
	}
	return "", false
}

// Lookup returns the definition for k.
func Lookup(k ledger.Kind) (KindDef, bool) {
	for _, d := range curated {
		if d.Kind == k {
			return d, true
		}
	}
	return KindDef{}, false
}
