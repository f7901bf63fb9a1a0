package handle

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  king  ":   "king",
		"King":       "King",
		"jose\u0301": "jos\u00e9",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestIsValid(t *testing.T) {
	for _, s := range []string{"king", "K_1", "ana.maria", "o-neil", "jos\u00e9", "a"} {
		if !IsValid(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	for _, s := range []string{"", "two words", "semi;colon", "tab\t", string(long)} {
		if IsValid(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}
