package runtime

import (
	"context"
	"testing"
)

func TestStubLoadRejectsEmptyModelID(t *testing.T) {
	var s Stub
	if _, err := s.Load(context.Background(), LoadArgs{}); err == nil {
		t.Error("expected error for empty model id")
	}
}

func TestStubTranslatePreservesOrderAndLength(t *testing.T) {
	var s Stub
	h, err := s.Load(context.Background(), LoadArgs{ModelID: "m", Device: "cpu"})
	if err != nil {
		t.Fatal(err)
	}
	in := []string{"hello", "world", "foo"}
	out, err := s.Translate(context.Background(), h, in, TranslateOptions{TgtCode: "de"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d outputs, got %d", len(in), len(out))
	}
	for i, got := range out {
		if got != "[de] "+in[i] {
			t.Errorf("output %d: got %q", i, got)
		}
	}
}

func TestStubTranslateRejectsForeignHandle(t *testing.T) {
	var s Stub
	_, err := s.Translate(context.Background(), "not-a-handle", []string{"x"}, TranslateOptions{})
	if err == nil {
		t.Error("expected error for handle not produced by Stub.Load")
	}
}

func TestStubReleaseIsNoOp(t *testing.T) {
	var s Stub
	if err := s.Release(nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
