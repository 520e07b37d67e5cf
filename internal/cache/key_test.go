package cache

import (
	"strings"
	"testing"
)

func TestKey_NormalizesCaseAndWhitespace(t *testing.T) {
	a := Key(3, "Como bloquear cartão?")
	b := Key(3, "  COMO BLOQUEAR CARTÃO?  ")
	if a != b {
		t.Fatalf("expected identical keys, got %q and %q", a, b)
	}
}

func TestKey_Deterministic(t *testing.T) {
	if Key(7, "reset my password") != Key(7, "reset my password") {
		t.Fatalf("same input produced different keys")
	}
}

func TestKey_IsolatedBySubcategory(t *testing.T) {
	if Key(3, "x") == Key(4, "x") {
		t.Fatalf("keys must differ across subcategories")
	}
}

func TestKey_CarriesNamespacePrefix(t *testing.T) {
	k := Key(1, "hello")
	if !strings.HasPrefix(k, Namespace) {
		t.Fatalf("key %q missing namespace prefix %q", k, Namespace)
	}
}
