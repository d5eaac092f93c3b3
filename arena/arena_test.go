package arena

import "testing"

func TestAlloc_ZeroLengthReturnsNil(t *testing.T) {
	a := New()
	if got := a.Alloc(0); got != nil {
		t.Errorf("Alloc(0) = %v, want nil", got)
	}
}

func TestAlloc_GrowsBlocksOnOverflow(t *testing.T) {
	a := NewWithConfig(Config{BlockSize: 16})
	first := a.Alloc(16)
	second := a.Alloc(16)
	if len(a.blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2 after two 16-byte allocs in a 16-byte-block arena", len(a.blocks))
	}
	if &first[0] == &second[0] {
		t.Errorf("two allocations that overflowed the block shared backing storage")
	}
}

func TestFreshID_IsMonotone(t *testing.T) {
	a := New()
	ids := make([]uint32, 5)
	for i := range ids {
		ids[i] = a.FreshID()
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[i-1]+1 {
			t.Fatalf("FreshID sequence = %v, want consecutive ascending values", ids)
		}
	}
}

func TestInternString_DedupsByContent(t *testing.T) {
	a := New()
	s1 := a.InternString("hello")
	s2 := a.InternString("hello")
	if s1 != s2 {
		t.Errorf("InternString(\"hello\") twice returned distinct pointers")
	}
	s3 := a.InternString("world")
	if s1 == s3 {
		t.Errorf("InternString did not distinguish different content")
	}
}

func TestUniqueName_NeverRepeats(t *testing.T) {
	a := New()
	n1 := a.UniqueName("tmp")
	n2 := a.UniqueName("tmp")
	if *n1 == *n2 {
		t.Errorf("UniqueName(\"tmp\") produced the same name twice: %q", *n1)
	}
}

func TestInternStringList_DedupsByPointerSequence(t *testing.T) {
	a := New()
	x := a.InternString("x")
	y := a.InternString("y")
	l1 := a.InternStringList([]*string{x, y})
	l2 := a.InternStringList([]*string{x, y})
	if l1 != l2 {
		t.Errorf("InternStringList returned distinct lists for the same pointer sequence")
	}
	l3 := a.InternStringList([]*string{y, x})
	if l1 == l3 {
		t.Errorf("InternStringList did not distinguish element order")
	}
}

func TestHashBytes_IsDeterministic(t *testing.T) {
	data := []byte("deterministic")
	if HashBytes(data) != HashBytes(data) {
		t.Errorf("HashBytes was not deterministic for identical input")
	}
}
