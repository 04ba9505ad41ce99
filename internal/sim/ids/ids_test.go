package ids

import "testing"

func TestNewIsUniqueAndPrefixed(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New(PrefixDecision)
		if !HasPrefix(id, PrefixDecision) {
			t.Fatalf("missing prefix: %s", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestCounterPerPrefix(t *testing.T) {
	gen := Counter()
	if got := gen(PrefixPaper); got != "ppr_1" {
		t.Fatalf("got %s", got)
	}
	if got := gen(PrefixGrant); got != "grt_1" {
		t.Fatalf("got %s", got)
	}
	if got := gen(PrefixPaper); got != "ppr_2" {
		t.Fatalf("got %s", got)
	}
}
