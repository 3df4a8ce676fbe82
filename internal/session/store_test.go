package session

import (
	"context"
	"strings"
	"testing"

	"github.com/flagmirror/flagmirror/internal/evalcontext"
)

func TestMemoryStore_GetPut(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.Get(ctx, "missing")
	if err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	rec := NewCustom("sess-1", "dev@example.com", "Dev", "Berlin")
	if err := st.Put(ctx, "sess-1", rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := st.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Type != TypeCustom {
		t.Errorf("Expected type custom, got %s", got.Type)
	}
	if got.ContextData.Email != "dev@example.com" {
		t.Errorf("Expected email preserved, got '%s'", got.ContextData.Email)
	}
}

func TestNewCustom_KeyedByEmail(t *testing.T) {
	// The same email must always produce the same identity, regardless of
	// session.
	a := NewCustom("sess-1", "dev@example.com", "Dev", "")
	b := NewCustom("sess-2", "dev@example.com", "Someone Else", "Tokyo")

	if a.ContextData.Key != "dev@example.com" || b.ContextData.Key != "dev@example.com" {
		t.Errorf("Custom records must be keyed by email, got '%s' and '%s'",
			a.ContextData.Key, b.ContextData.Key)
	}
}

func TestNewAnonymous_FreshKey(t *testing.T) {
	a := NewAnonymous("sess-1", "")
	b := NewAnonymous("sess-1", "")

	if !strings.HasPrefix(a.ContextData.Key, evalcontext.AnonymousKeyPrefix) {
		t.Errorf("Anonymous key missing prefix: '%s'", a.ContextData.Key)
	}
	if a.ContextData.Key == b.ContextData.Key {
		t.Error("Anonymous keys must never be reused")
	}
	if !a.ContextData.Anonymous {
		t.Error("Anonymous record must have the anonymous attribute set")
	}
}

func TestNextAnonymous_PreservesExistingAnonymousKey(t *testing.T) {
	prev := NewAnonymous("sess-1", "Berlin")
	next := NextAnonymous(&prev, "sess-1", "Tokyo")

	if next.ContextData.Key != prev.ContextData.Key {
		t.Errorf("Re-submitting an anonymous context must keep its key: got '%s', want '%s'",
			next.ContextData.Key, prev.ContextData.Key)
	}
	if next.ContextData.Location != "Tokyo" {
		t.Errorf("Location should be replaced, got '%s'", next.ContextData.Location)
	}
}

func TestNextAnonymous_FreshKeyAfterCustom(t *testing.T) {
	prev := NewCustom("sess-1", "dev@example.com", "Dev", "Berlin")
	next := NextAnonymous(&prev, "sess-1", "")

	if !strings.HasPrefix(next.ContextData.Key, evalcontext.AnonymousKeyPrefix) {
		t.Errorf("Switching from custom must mint a synthesized key, got '%s'", next.ContextData.Key)
	}
	if next.ContextData.Email != "" {
		t.Errorf("Attributes from the custom record must not survive, got email '%s'", next.ContextData.Email)
	}
}

func TestNextAnonymous_NoPrevious(t *testing.T) {
	next := NextAnonymous(nil, "sess-1", "")
	if !strings.HasPrefix(next.ContextData.Key, evalcontext.AnonymousKeyPrefix) {
		t.Errorf("Expected synthesized key, got '%s'", next.ContextData.Key)
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	custom := NewCustom("sess-1", "dev@example.com", "Dev", "Berlin")
	if err := st.Put(ctx, "sess-1", custom); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Switching type replaces the record outright.
	anon := NewAnonymous("sess-1", "")
	if err := st.Put(ctx, "sess-1", anon); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := st.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Type != TypeAnonymous {
		t.Errorf("Expected anonymous record after overwrite, got %s", got.Type)
	}
	if got.ContextData.Email != "" {
		t.Errorf("Old attributes must not survive overwrite, got email '%s'", got.ContextData.Email)
	}
}
