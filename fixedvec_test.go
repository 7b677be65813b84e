package mccc

import "testing"

func TestFixedVector_PushBackUntilFull(t *testing.T) {
	v := NewFixedVector[int](3)
	for i := 0; i < 3; i++ {
		if !v.PushBack(i) {
			t.Fatalf("PushBack(%d) failed before capacity reached", i)
		}
	}
	if v.PushBack(99) {
		t.Fatalf("PushBack succeeded past capacity")
	}
	if !v.Full() {
		t.Fatalf("expected Full() true at capacity")
	}
	if v.Len() != 3 || v.Cap() != 3 {
		t.Fatalf("Len/Cap = %d/%d, want 3/3", v.Len(), v.Cap())
	}
}

func TestFixedVector_EraseUnorderedSwapsLast(t *testing.T) {
	v := NewFixedVector[string](4)
	v.PushBack("a")
	v.PushBack("b")
	v.PushBack("c")

	if !v.EraseUnordered(0) {
		t.Fatalf("EraseUnordered(0) returned false")
	}
	if v.Len() != 2 {
		t.Fatalf("Len = %d, want 2", v.Len())
	}
	if v.At(0) != "c" {
		t.Fatalf("At(0) = %q, want last element swapped into vacated slot", v.At(0))
	}
}

func TestFixedVector_EraseUnorderedOutOfRange(t *testing.T) {
	v := NewFixedVector[int](2)
	v.PushBack(1)
	if v.EraseUnordered(5) {
		t.Fatalf("EraseUnordered with out-of-range index returned true")
	}
}

func TestFixedVector_ClearZeroesAndResetsLen(t *testing.T) {
	v := NewFixedVector[int](2)
	v.PushBack(7)
	v.Clear()
	if v.Len() != 0 {
		t.Fatalf("Len = %d after Clear, want 0", v.Len())
	}
	if !v.PushBack(1) {
		t.Fatalf("PushBack after Clear failed")
	}
}

func TestFixedVector_Each(t *testing.T) {
	v := NewFixedVector[int](4)
	v.PushBack(10)
	v.PushBack(20)
	v.PushBack(30)

	var sum int
	v.Each(func(_ int, val int) { sum += val })
	if sum != 60 {
		t.Fatalf("sum = %d, want 60", sum)
	}
}
