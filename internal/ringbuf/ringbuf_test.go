package ringbuf

import "testing"

func TestPushEvictsOldest(t *testing.T) {
	b := New(3)
	if b.Cap() != 3 || b.Len() != 0 {
		t.Fatalf("New(3): cap=%d len=%d, want 3/0", b.Cap(), b.Len())
	}

	b.Push(1)
	b.Push(2)
	b.Push(3)
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	// fourth push evicts the oldest, length stays at capacity
	b.Push(4)
	if b.Len() != 3 {
		t.Errorf("Len() after overflow = %d, want 3", b.Len())
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if got := b.At(i); got != w {
			t.Errorf("At(%d) = %f, want %f", i, got, w)
		}
	}
}

func TestNewFilled(t *testing.T) {
	b := NewFilled(4, 0.5)
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
	for i := 0; i < b.Len(); i++ {
		if b.At(i) != 0.5 {
			t.Errorf("At(%d) = %f, want 0.5", i, b.At(i))
		}
	}
}

func TestSnapshotOrder(t *testing.T) {
	b := New(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		b.Push(v)
	}
	got := b.Snapshot()
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Snapshot()[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestFill(t *testing.T) {
	b := New(3)
	b.Push(1)
	b.Fill(7)
	if b.Len() != 3 {
		t.Fatalf("Len() after Fill = %d, want 3", b.Len())
	}
	for i := 0; i < 3; i++ {
		if b.At(i) != 7 {
			t.Errorf("At(%d) = %f, want 7", i, b.At(i))
		}
	}
}

func TestZeroCapacity(t *testing.T) {
	b := New(0)
	b.Push(1) // must not panic
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}
