package idem

import "testing"

func TestKeyDeterministic(t *testing.T) {
	a := Key("st-001:12345", 1700000000000)
	b := Key("st-001:12345", 1700000000000)
	if a != b {
		t.Fatalf("same input produced different keys: %q vs %q", a, b)
	}
}

func TestKeyLengthAndCharset(t *testing.T) {
	k := Key("st-001:12345", 1700000000000)
	if len(k) != KeyLen {
		t.Fatalf("key length = %d, want %d", len(k), KeyLen)
	}
	for _, c := range k {
		if !(c >= 'A' && c <= 'Z') && !(c >= '2' && c <= '7') {
			t.Fatalf("non-alphanumeric character %q in key %q", c, k)
		}
	}
}

func TestKeyDistinguishesEntries(t *testing.T) {
	seen := map[string]string{}
	inputs := []struct {
		id string
		ms int64
	}{
		{"st-001:12345", 1700000000000},
		{"st-001:12345", 1700000000001}, // same id, different createdAt
		{"st-001:12346", 1700000000000},
		{"st-002:12345", 1700000000000},
	}
	for _, in := range inputs {
		k := Key(in.id, in.ms)
		if prev, ok := seen[k]; ok {
			t.Fatalf("collision between %q and %s:%d", prev, in.id, in.ms)
		}
		seen[k] = Fingerprint(in.id, in.ms)
	}
}
