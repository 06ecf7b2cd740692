package label

import (
	"reflect"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	tuples := []Tuple{{0, 1, 2}, {2, 2, 2}, {0, 0, 0}, {1, 0, 2}}
	const C = 3
	for _, tup := range tuples {
		packed := Pack(tup, C)
		got := Unpack(packed, len(tup), C)
		if !reflect.DeepEqual(got, tup) {
			t.Errorf("Unpack(Pack(%v)) = %v", tup, got)
		}
	}
}

func TestSuffix(t *testing.T) {
	tup := Tuple{0, 1, 2, 1}
	if got := tup.Suffix(2); !reflect.DeepEqual(got, Tuple{2, 1}) {
		t.Errorf("Suffix(2) = %v, want [2 1]", got)
	}
	if got := tup.Suffix(1); !reflect.DeepEqual(got, Tuple{1}) {
		t.Errorf("Suffix(1) = %v, want [1]", got)
	}
}

func TestExtends(t *testing.T) {
	if !(Tuple{0, 1, 2}.Extends(Tuple{1, 2})) {
		t.Error("expected [0 1 2] to extend [1 2]")
	}
	if (Tuple{0, 1, 2}).Extends(Tuple{0, 1}) {
		t.Error("did not expect [0 1 2] to extend [0 1] (not a suffix)")
	}
}

func TestIndexSetInsertObserved(t *testing.T) {
	s := NewIndexSet(3, 2)
	s.InsertObserved(Tuple{0, 1, 1})

	if s.At(2).Size() != 1 {
		t.Fatalf("order-2 size = %d, want 1", s.At(2).Size())
	}
	if s.At(1).Size() != 1 {
		t.Fatalf("order-1 (suffix len 2) size = %d, want 1", s.At(1).Size())
	}
	if s.At(0).Size() != 1 {
		t.Fatalf("order-0 (suffix len 1) size = %d, want 1", s.At(0).Size())
	}
	if id, ok := s.At(0).IndexOf(Tuple{1}); !ok || id != 0 {
		t.Fatalf("order-0 should contain suffix [1], got ok=%v id=%d", ok, id)
	}
}

func TestIndexSetBuildAll(t *testing.T) {
	s := NewIndexSet(2, 3)
	s.BuildAll()
	if s.At(0).Size() != 3 {
		t.Fatalf("order-0 size = %d, want 3", s.At(0).Size())
	}
	if s.At(1).Size() != 9 {
		t.Fatalf("order-1 size = %d, want 9", s.At(1).Size())
	}
}
