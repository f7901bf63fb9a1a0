package dictionary

import (
	"testing"

	"github.com/tinoosan/bankledger/internal/ledger"
)

func TestCatalogCoversEveryKind(t *testing.T) {
	for _, k := range ledger.Kinds {
		if _, ok := Lookup(k); !ok {
			t.Fatalf("kind %s missing from catalog", k)
		}
	}
	if len(Kinds()) != len(ledger.Kinds) {
		t.Fatalf("catalog has %d entries, want %d", len(Kinds()), len(ledger.Kinds))
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]ledger.Kind{
		"savings":          ledger.KindSavings,
		"SavingsAccount":   ledger.KindSavings,
		" CHECKING ":       ledger.KindChecking,
		"checking account": ledger.KindChecking,
		"base":             ledger.KindBase,
		"Account":          ledger.KindBase,
	}
	for in, want := range cases {
		got, ok := ParseKind(in)
		if !ok || got != want {
			t.Fatalf("ParseKind(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseKind("brokerage"); ok {
		t.Fatalf("unknown kind accepted")
	}
}

func TestKindsReturnsCopy(t *testing.T) {
	k := Kinds()
	k[0].Label = "changed"
	if Kinds()[0].Label == "changed" {
		t.Fatalf("catalog mutated through returned slice")
	}
}
