package mccc

import (
	"errors"
	"testing"
)

func TestNewFixedStringExact(t *testing.T) {
	s, err := NewFixedStringExact("hello", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.String() != "hello" {
		t.Fatalf("String() = %q, want %q", s.String(), "hello")
	}
	if s.Len() != 5 || s.Cap() != 8 {
		t.Fatalf("Len/Cap = %d/%d, want 5/8", s.Len(), s.Cap())
	}
}

func TestNewFixedStringExact_Overflow(t *testing.T) {
	_, err := NewFixedStringExact("too long for this", 4)
	if !errors.Is(err, ErrFixedStringOverflow) {
		t.Fatalf("err = %v, want ErrFixedStringOverflow", err)
	}
}

func TestNewFixedStringTruncate(t *testing.T) {
	s := NewFixedStringTruncate("abcdefgh", 4)
	if s.String() != "abcd" {
		t.Fatalf("String() = %q, want truncated %q", s.String(), "abcd")
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
}

func TestFixedString_Empty(t *testing.T) {
	s, err := NewFixedStringExact("", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Empty() {
		t.Fatalf("Empty() = false, want true")
	}
}
