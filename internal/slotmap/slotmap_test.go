package slotmap

import "testing"

func collect(m *Map[int]) []int {
	var out []int
	m.Each(func(_ Handle, v int) bool {
		out = append(out, v)
		return true
	})
	return out
}

func TestInsertKeepsOrder(t *testing.T) {
	m := New[int](0)
	for i := 1; i <= 3; i++ {
		if _, ok := m.Insert(i); !ok {
			t.Fatalf("Insert(%d) ok = false, want true", i)
		}
	}
	got := collect(m)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Each() = %v, want [1 2 3]", got)
	}
}

func TestRemoveInvalidatesHandle(t *testing.T) {
	m := New[int](0)
	a, _ := m.Insert(1)
	b, _ := m.Insert(2)

	if _, ok := m.Remove(a); !ok {
		t.Fatalf("Remove(a) ok = false, want true")
	}
	if m.Contains(a) {
		t.Fatalf("Contains(a) = true after remove")
	}
	if _, ok := m.Remove(a); ok {
		t.Fatalf("second Remove(a) ok = true, want false")
	}

	c, _ := m.Insert(3)
	if c.Index() != a.Index() {
		t.Fatalf("Insert reused index %d, want %d", c.Index(), a.Index())
	}
	if m.Contains(a) {
		t.Fatalf("stale handle accepted after slot reuse")
	}
	if v, ok := m.Get(c); !ok || v != 3 {
		t.Fatalf("Get(c) = %d, %v, want 3, true", v, ok)
	}
	if got := collect(m); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("Each() = %v, want [2 3]", got)
	}
	_ = b
}

func TestNextWraps(t *testing.T) {
	m := New[int](0)
	a, _ := m.Insert(1)
	b, _ := m.Insert(2)

	if n, _ := m.Next(a); n != b {
		t.Fatalf("Next(a) = %v, want %v", n, b)
	}
	if n, _ := m.Next(b); n != a {
		t.Fatalf("Next(b) = %v, want %v", n, a)
	}
}

func TestLimit(t *testing.T) {
	m := New[int](1)
	if _, ok := m.Insert(1); !ok {
		t.Fatalf("Insert ok = false, want true")
	}
	if _, ok := m.Insert(2); ok {
		t.Fatalf("Insert past limit ok = true, want false")
	}
}

func TestDrain(t *testing.T) {
	m := New[int](0)
	m.Insert(1)
	m.Insert(2)
	var got []int
	m.Drain(func(v int) { got = append(got, v) })
	if m.Len() != 0 {
		t.Fatalf("Len() = %d after Drain, want 0", m.Len())
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Drain visited %v, want [1 2]", got)
	}
	if _, ok := m.Front(); ok {
		t.Fatalf("Front() ok = true on empty map")
	}
}
