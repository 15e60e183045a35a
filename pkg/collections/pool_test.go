package collections

import (
	"testing"
)

func TestSlicePool(t *testing.T) {
	pool := NewSlicePool[int](256)

	// Get a slice
	s := pool.Get()
	if s == nil {
		t.Fatal("Get returned nil")
	}
	if cap(*s) < 256 {
		t.Errorf("Expected capacity >= 256, got %d", cap(*s))
	}

	// Use the slice
	*s = append(*s, 1, 2, 3)
	if len(*s) != 3 {
		t.Errorf("Expected length 3, got %d", len(*s))
	}

	// Put it back
	pool.Put(s)

	// Get again (should be cleared)
	s2 := pool.Get()
	if len(*s2) != 0 {
		t.Errorf("Expected length 0 after Put, got %d", len(*s2))
	}
}

func TestFloat32SlicePool(t *testing.T) {
	s := GetFloat32Slice()
	if s == nil {
		t.Fatal("GetFloat32Slice returned nil")
	}
	if cap(*s) < 4096 {
		t.Errorf("Expected capacity >= 4096, got %d", cap(*s))
	}

	*s = append(*s, 1.5, 2.5, 3.5)
	if len(*s) != 3 {
		t.Errorf("Expected length 3, got %d", len(*s))
	}

	PutFloat32Slice(s)

	s2 := GetFloat32Slice()
	if len(*s2) != 0 {
		t.Errorf("Expected length 0 after Put, got %d", len(*s2))
	}
}

func BenchmarkFloat32SlicePool(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := GetFloat32Slice()
		*s = append(*s, 1.0, 2.0, 3.0)
		PutFloat32Slice(s)
	}
}
