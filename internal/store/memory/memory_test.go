package memory

import (
	"context"
	"testing"
)

func TestSetGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, ok, _ := s.Get(ctx, "clients"); ok {
		t.Fatalf("expected missing table")
	}

	if err := s.Set(ctx, "clients", []byte(`[]`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	payload, ok, err := s.Get(ctx, "clients")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if string(payload) != `[]` {
		t.Fatalf("unexpected payload: %s", payload)
	}

	if err := s.Delete(ctx, "clients"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "clients"); ok {
		t.Fatalf("table still present after delete")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "t", []byte("abc")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	payload, _, _ := s.Get(ctx, "t")
	payload[0] = 'X'

	again, _, _ := s.Get(ctx, "t")
	if string(again) != "abc" {
		t.Fatalf("caller mutation leaked into the store: %s", again)
	}
}
