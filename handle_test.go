package assetcache

import (
	"sync"
	"testing"
)

func TestSharedCloneAndCloseBalance(t *testing.T) {
	s := newShared(42)
	clone := s.Clone()

	if s.Value() != 42 || clone.Value() != 42 {
		t.Fatal("clone should observe the same value")
	}

	s.Close()
	// One outstanding reference remains; clone must still be usable.
	if clone.Value() != 42 {
		t.Fatal("clone should survive the original handle's Close")
	}
	clone.Close()
}

func TestSharedDoubleClosePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on double Close")
		}
	}()
	s := newShared(1)
	s.Close()
	s.Close()
}

func TestWeakUpgradeFailsAfterLastClose(t *testing.T) {
	s := newShared("x")
	weak := s.Weak()
	s.Close()

	if _, ok := weak.Upgrade(); ok {
		t.Fatal("expected Upgrade to fail once the last Shared handle is closed")
	}
}

func TestWeakUpgradeSucceedsWhileHandleLive(t *testing.T) {
	s := newShared("x")
	weak := s.Weak()

	upgraded, ok := weak.Upgrade()
	if !ok {
		t.Fatal("expected Upgrade to succeed while a Shared handle is live")
	}
	upgraded.Close()
	s.Close()
}

func TestSharedResultTakeIsSafeForConcurrentCallers(t *testing.T) {
	handle := newShared("value")
	result := newSharedResult(handle)

	const n = 16
	var wg sync.WaitGroup
	clones := make([]*Shared[string], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clones[i] = result.Take()
		}(i)
	}
	wg.Wait()

	for _, c := range clones {
		if c.Value() != "value" {
			t.Fatalf("got %q", c.Value())
		}
	}
	for _, c := range clones {
		c.Close()
	}
}
