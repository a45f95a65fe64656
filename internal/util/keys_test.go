package util

import "testing"

func TestSortedKeys(t *testing.T) {
	m := map[int]string{12: "c", 3: "a", 7: "b"}
	keys := SortedKeys(m)
	expected := []int{3, 7, 12}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i, k := range keys {
		if k != expected[i] {
			t.Errorf("key %d: expected %d, got %d", i, expected[i], k)
		}
	}
}

func TestMod(t *testing.T) {
	tests := []struct {
		a, m, want int
	}{
		{60, 12, 0},
		{67, 12, 7},
		{-1, 12, 11},
		{-13, 12, 11},
	}
	for _, tt := range tests {
		if got := Mod(tt.a, tt.m); got != tt.want {
			t.Errorf("Mod(%d, %d) = %d, want %d", tt.a, tt.m, got, tt.want)
		}
	}
}
