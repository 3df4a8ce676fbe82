package evalcontext

import (
	"strings"
	"testing"

	"github.com/flagmirror/flagmirror/internal/logging"
)

func TestBuild_KeyPreferenceOrder(t *testing.T) {
	b := NewBuilder(logging.Nop())

	// Explicit key wins over everything
	ctx := b.Build(AttributeBag{Key: "explicit", Email: "a@example.com"}, "known")
	if ctx.Key != "explicit" {
		t.Errorf("Expected key 'explicit', got '%s'", ctx.Key)
	}

	// Email next
	ctx = b.Build(AttributeBag{Email: "a@example.com"}, "known")
	if ctx.Key != "a@example.com" {
		t.Errorf("Expected key 'a@example.com', got '%s'", ctx.Key)
	}

	// Previously known key next
	ctx = b.Build(AttributeBag{}, "known")
	if ctx.Key != "known" {
		t.Errorf("Expected key 'known', got '%s'", ctx.Key)
	}

	// Nothing at all synthesizes an anonymous key
	ctx = b.Build(AttributeBag{}, "")
	if !strings.HasPrefix(ctx.Key, AnonymousKeyPrefix) {
		t.Errorf("Expected synthesized key with prefix '%s', got '%s'", AnonymousKeyPrefix, ctx.Key)
	}
}

func TestBuild_NeverEmptyKey(t *testing.T) {
	b := NewBuilder(logging.Nop())
	ctx := b.Build(AttributeBag{Key: "   ", Email: "  "}, "  ")
	if ctx.Key == "" {
		t.Fatal("Built context must never have an empty key")
	}
}

func TestBuild_AttributesCopied(t *testing.T) {
	b := NewBuilder(logging.Nop())
	ctx := b.Build(AttributeBag{
		Email:    "dev@example.com",
		Name:     "Dev User",
		Location: "Berlin",
	}, "")

	if ctx.Kind != KindUser {
		t.Errorf("Expected kind '%s', got '%s'", KindUser, ctx.Kind)
	}
	if ctx.Name != "Dev User" {
		t.Errorf("Expected name 'Dev User', got '%s'", ctx.Name)
	}
	if got := ctx.Attr("email"); got != "dev@example.com" {
		t.Errorf("Expected email attribute, got '%s'", got)
	}
	if got := ctx.Attr("location"); got != "Berlin" {
		t.Errorf("Expected location attribute, got '%s'", got)
	}
	if got := ctx.Attr("missing"); got != "" {
		t.Errorf("Expected empty string for missing attribute, got '%s'", got)
	}
}

func TestNewAnonymousKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := NewAnonymousKey()
		if !strings.HasPrefix(key, AnonymousKeyPrefix) {
			t.Fatalf("Key '%s' missing prefix '%s'", key, AnonymousKeyPrefix)
		}
		if seen[key] {
			t.Fatalf("Key '%s' generated twice", key)
		}
		seen[key] = true
	}
}

func TestAsMap(t *testing.T) {
	b := NewBuilder(logging.Nop())
	ctx := b.Build(AttributeBag{Email: "dev@example.com", Name: "Dev"}, "")

	m := ctx.AsMap()
	if m["key"] != ctx.Key {
		t.Errorf("Expected map key '%s', got '%v'", ctx.Key, m["key"])
	}
	if m["kind"] != KindUser {
		t.Errorf("Expected kind '%s', got '%v'", KindUser, m["kind"])
	}
	if m["name"] != "Dev" {
		t.Errorf("Expected name 'Dev', got '%v'", m["name"])
	}
	if m["email"] != "dev@example.com" {
		t.Errorf("Expected email in map, got '%v'", m["email"])
	}
}
