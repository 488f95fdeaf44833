package rcu

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func expectEqual(t *testing.T, actual, expected interface{}) {
	t.Helper()
	if actual != expected {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

type payload struct {
	a, b    int
	retired atomic.Bool
}

type box struct {
	p *payload
}

func TestReadSeesLastUpdate(t *testing.T) {
	r := New(1)
	var v int
	r.Read(func(p *int) { v = *p })
	expectEqual(t, v, 1)
	r.Update(func(p *int) { *p += 41 })
	r.Read(func(p *int) { v = *p })
	expectEqual(t, v, 42)
	expectEqual(t, r.Snapshot(), 42)
}

func TestConcurrentReadersNeverSeeRetiredValues(t *testing.T) {
	r := New(box{p: &payload{}},
		WithClone(func(b box) box {
			return box{p: &payload{a: b.p.a, b: b.p.b}}
		}),
		WithRetire(func(b *box) {
			b.p.retired.Store(true)
		}),
	)

	var failures atomic.Int64
	var stop atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				r.Read(func(b *box) {
					if b.p.retired.Load() || b.p.a != b.p.b {
						failures.Add(1)
					}
					a := b.p.a
					for j := 0; j < 10; j++ {
						a += j
					}
					if b.p.retired.Load() {
						failures.Add(1)
					}
					_ = a
				})
			}
		}()
	}

	var writers sync.WaitGroup
	for w := 0; w < 2; w++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for i := 0; i < 200; i++ {
				r.Update(func(b *box) {
					b.p.a++
					b.p.b++
				})
			}
		}()
	}
	writers.Wait()
	stop.Store(true)
	wg.Wait()

	expectEqual(t, failures.Load(), int64(0))
	var final int
	r.Read(func(b *box) { final = b.p.a })
	expectEqual(t, final, 400)
}

func TestSliceLenAndEmpty(t *testing.T) {
	r := NewSlice[int](nil)
	expectEqual(t, Empty(r), true)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Update(func(s *[]int) {
					*s = append(*s, w*1000+i)
				})
				Len(r)
			}
		}(w)
	}
	wg.Wait()
	expectEqual(t, Len(r), 400)
	expectEqual(t, Empty(r), false)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewSlice([]int{1, 2, 3})
	s := r.Snapshot()
	s[0] = 100
	r.Update(func(v *[]int) { (*v)[1] = 200 })
	var got []int
	r.Read(func(v *[]int) { got = append(got, *v...) })
	expectEqual(t, got[0], 1)
	expectEqual(t, got[1], 200)
	expectEqual(t, s[1], 2)
}

func TestReadReusesSlots(t *testing.T) {
	r := New("x")
	for i := 0; i < 100; i++ {
		r.Read(func(*string) {})
	}
	expectEqual(t, r.Readers(), 1)
}

func TestClosedReadersAreReaped(t *testing.T) {
	r := New(0)
	r1 := r.Register()
	r2 := r.Register()
	r3 := r.Register()
	expectEqual(t, r.Readers(), 3)

	var v int
	r2.Read(func(p *int) { v = *p })
	expectEqual(t, v, 0)

	r3.Close()
	r1.Close()
	expectEqual(t, r.Readers(), 3)
	r.Update(func(p *int) { *p = 7 })
	expectEqual(t, r.Readers(), 1)

	r2.Read(func(p *int) { v = *p })
	expectEqual(t, v, 7)

	// a closed slot is never handed out again
	r.Read(func(*int) {})
	expectEqual(t, r.Readers(), 2)
}

func TestUpdateWaitsForReaders(t *testing.T) {
	r := New(0)
	started := make(chan struct{})
	release := make(chan struct{})
	go r.Read(func(*int) {
		close(started)
		<-release
	})
	<-started

	updated := make(chan struct{})
	go func() {
		r.Update(func(p *int) { *p = 1 })
		close(updated)
	}()

	select {
	case <-updated:
		t.Fatal("update returned while a reader was still reading")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-updated

	var v int
	r.Read(func(p *int) { v = *p })
	expectEqual(t, v, 1)
}

type table struct {
	values map[string]float64
}

func (t *table) SetPath(path string, v float64) {
	m := make(map[string]float64, len(t.values)+1)
	for k, x := range t.values {
		m[k] = x
	}
	m[path] = v
	t.values = m
}

func (t table) GetPath(path string) (float64, bool) {
	v, ok := t.values[path]
	return v, ok
}

func (t table) HasPath(path string) bool {
	_, ok := t.values[path]
	return ok
}

func TestPathHelpers(t *testing.T) {
	r := New(table{})
	expectEqual(t, Has(r, "gain"), false)
	Set[table, float64](r, "gain", 0.5)
	expectEqual(t, Has(r, "gain"), true)
	v, ok := Get[table, float64](r, "gain")
	expectEqual(t, ok, true)
	expectEqual(t, v, 0.5)
	_, ok = Get[table, float64](r, "pan")
	expectEqual(t, ok, false)
}
