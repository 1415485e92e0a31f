package cache

import (
	"bytes"
	"testing"
)

func TestMemorySetGetDelete(t *testing.T) {
	m := NewMemory()

	m.Set("match-details:1", []byte("payload"))
	value, ok := m.Get("match-details:1")
	if !ok || !bytes.Equal(value, []byte("payload")) {
		t.Fatalf("got %q/%v, want payload/true", value, ok)
	}

	m.Delete("match-details:1")
	if _, ok := m.Get("match-details:1"); ok {
		t.Fatal("deleted key still readable")
	}

	if _, ok := m.Get("missing"); ok {
		t.Fatal("missing key reported present")
	}
}

func TestMemoryInvalidateTag(t *testing.T) {
	m := NewMemory()

	m.Set("match-details:1", []byte("one"), "match:1", "matches")
	m.Set("match-details:2", []byte("two"), "match:2", "matches")
	m.Set("unrelated", []byte("keep"))

	m.InvalidateTag("match:1")
	if _, ok := m.Get("match-details:1"); ok {
		t.Fatal("tagged key survived invalidation")
	}
	if _, ok := m.Get("match-details:2"); !ok {
		t.Fatal("key with a different tag was dropped")
	}
	if _, ok := m.Get("unrelated"); !ok {
		t.Fatal("untagged key was dropped")
	}

	// Общий тег сносит все ответы со списками.
	m.InvalidateTag("matches")
	if _, ok := m.Get("match-details:2"); ok {
		t.Fatal("key tagged matches survived invalidation")
	}
}

func TestMemorySetOverwritesTags(t *testing.T) {
	m := NewMemory()

	m.Set("key", []byte("v1"), "old-tag")
	m.Set("key", []byte("v2"), "new-tag")

	m.InvalidateTag("old-tag")
	if value, ok := m.Get("key"); !ok || !bytes.Equal(value, []byte("v2")) {
		t.Fatal("stale tag must not invalidate a rewritten key")
	}

	m.InvalidateTag("new-tag")
	if _, ok := m.Get("key"); ok {
		t.Fatal("current tag must invalidate the key")
	}
}
