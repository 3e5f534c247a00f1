package sftp

import "testing"

func TestHandleTableAllocateResolveRelease(t *testing.T) {
	ht := newHandleTable()
	h1, ok := ht.allocate(&handleEntry{name: "/a"})
	if !ok {
		t.Fatal("allocate failed unexpectedly")
	}
	h2, ok := ht.allocate(&handleEntry{name: "/b"})
	if !ok {
		t.Fatal("allocate failed unexpectedly")
	}
	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %q twice", h1)
	}

	e, err := ht.resolve(h1)
	if err != nil || e.name != "/a" {
		t.Fatalf("resolve(%q): got (%v, %v), want (/a, nil)", h1, e, err)
	}

	ht.release(h1)
	if _, err := ht.resolve(h1); err != errNotAHandle {
		t.Fatalf("resolve after release: got %v, want errNotAHandle", err)
	}
	if ht.len() != 1 {
		t.Fatalf("len after release: got %d, want 1", ht.len())
	}
}

func TestHandleTableUnknownHandle(t *testing.T) {
	ht := newHandleTable()
	if _, err := ht.resolve("999"); err != errNotAHandle {
		t.Fatalf("resolve unknown: got %v, want errNotAHandle", err)
	}
}

func TestHandleTableOverflow(t *testing.T) {
	ht := newHandleTable()
	ht.counter = ^uint64(0)
	if _, ok := ht.allocate(&handleEntry{}); ok {
		t.Fatal("allocate should fail once the counter has saturated")
	}
}

func TestHandleTableHandlesAreAsciiDecimal(t *testing.T) {
	ht := newHandleTable()
	h, _ := ht.allocate(&handleEntry{})
	if h != "1" {
		t.Fatalf("first handle: got %q, want \"1\"", h)
	}
}
