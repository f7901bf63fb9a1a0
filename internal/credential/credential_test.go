package credential

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tinoosan/bankledger/internal/errs"
)

func TestVerifyAfterNew(t *testing.T) {
	for _, h := range []Hasher{SHA256{}, Argon2id{}} {
		c, err := New("pw", h)
		if err != nil {
			t.Fatalf("%s: new: %v", h.Algorithm(), err)
		}
		if len(c.Salt) != SaltSize {
			t.Fatalf("salt len=%d want=%d", len(c.Salt), SaltSize)
		}
		if c.Algorithm != h.Algorithm() {
			t.Fatalf("algorithm=%q want=%q", c.Algorithm, h.Algorithm())
		}
		if !c.Verify("pw") {
			t.Fatalf("%s: verify(pw) = false", h.Algorithm())
		}
		for _, wrong := range []string{"", "PW", "pw ", "pwx"} {
			if c.Verify(wrong) {
				t.Fatalf("%s: verify(%q) = true", h.Algorithm(), wrong)
			}
		}
	}
}

func TestSHA256IsSaltThenPassword(t *testing.T) {
	salt := []byte("0123456789abcdef")
	got := SHA256{}.Hash(salt, "secret")
	want := SHA256{}.Hash(nil, "0123456789abcdefsecret")
	if !bytes.Equal(got, want) {
		t.Fatalf("hash(salt ‖ password) mismatch")
	}
}

func TestSaltsDiffer(t *testing.T) {
	a, _ := New("pw", nil)
	b, _ := New("pw", nil)
	if bytes.Equal(a.Salt, b.Salt) || bytes.Equal(a.Hash, b.Hash) {
		t.Fatalf("two credentials for the same password must not share salt or hash")
	}
}

func TestEmptyPasswordRejected(t *testing.T) {
	if _, err := New("", nil); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	if h, err := Lookup(""); err != nil || h.Algorithm() != AlgorithmSHA256 {
		t.Fatalf("empty name should resolve to sha256: %v %v", h, err)
	}
	if _, err := Lookup("md5"); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid for unknown algorithm, got %v", err)
	}
	c := Credential{Salt: []byte("s"), Hash: []byte("h"), Algorithm: "md5"}
	if c.Verify("anything") {
		t.Fatalf("unknown algorithm must never verify")
	}
}

func TestClone(t *testing.T) {
	c, _ := New("pw", nil)
	cp := c.Clone()
	cp.Salt[0] ^= 0xff
	if bytes.Equal(c.Salt, cp.Salt) {
		t.Fatalf("clone shares salt")
	}
}
