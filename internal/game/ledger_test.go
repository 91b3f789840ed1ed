package game

import "testing"

func TestBetLedgerPlace(t *testing.T) {
	t.Parallel()

	l := NewBetLedger()
	l.Place("alice", 10000)
	l.Place("bob", 5000)

	if l.Size() != 2 {
		t.Fatalf("Expected 2 bettors, got %d", l.Size())
	}
	if l.Total() != 15000 {
		t.Errorf("Expected total 15000, got %d", l.Total())
	}
	if !l.Has("alice") || !l.Has("bob") {
		t.Error("Both placed bettors should be present")
	}
	if l.Has("carol") {
		t.Error("Unplaced bettor should not be present")
	}
	if entry := l.Entry("alice"); entry == nil || entry.Amount != 10000 {
		t.Errorf("Expected alice entry with amount 10000, got %+v", entry)
	}
}

func TestBetLedgerRemoveSwapsLast(t *testing.T) {
	t.Parallel()

	l := NewBetLedger()
	l.Place("alice", 100)
	l.Place("bob", 200)
	l.Place("carol", 300)

	// Removing the first slot should swap carol (the last) into it
	l.Remove("alice")

	if l.Size() != 2 {
		t.Fatalf("Expected 2 bettors after removal, got %d", l.Size())
	}
	if l.bettors[0] != "carol" {
		t.Errorf("Expected carol swapped into slot 0, got %s", l.bettors[0])
	}
	if pos := l.index["carol"]; pos != 0 {
		t.Errorf("Expected carol's reverse index updated to 0, got %d", pos)
	}
	if pos := l.index["bob"]; pos != 1 {
		t.Errorf("Expected bob's reverse index unchanged at 1, got %d", pos)
	}
	if l.Has("alice") {
		t.Error("Removed bettor should be gone from the ledger")
	}
	if l.Total() != 500 {
		t.Errorf("Expected total 500 after removal, got %d", l.Total())
	}
}

func TestBetLedgerRemoveLast(t *testing.T) {
	t.Parallel()

	l := NewBetLedger()
	l.Place("alice", 100)
	l.Place("bob", 200)

	// Removing the final slot needs no swap
	l.Remove("bob")

	if l.Size() != 1 {
		t.Fatalf("Expected 1 bettor, got %d", l.Size())
	}
	if l.bettors[0] != "alice" {
		t.Errorf("Expected alice in slot 0, got %s", l.bettors[0])
	}
	if pos := l.index["alice"]; pos != 0 {
		t.Errorf("Expected alice's index 0, got %d", pos)
	}
	if _, ok := l.index["bob"]; ok {
		t.Error("Removed bettor should have no reverse index")
	}
}

func TestBetLedgerRemoveUnknown(t *testing.T) {
	t.Parallel()

	l := NewBetLedger()
	l.Place("alice", 100)

	l.Remove("bob")

	if l.Size() != 1 || l.Total() != 100 {
		t.Errorf("Removing an unknown address should be a no-op, got size=%d total=%d", l.Size(), l.Total())
	}
}

func TestBetLedgerRegistryLockStep(t *testing.T) {
	t.Parallel()

	l := NewBetLedger()
	players := []string{"p1", "p2", "p3", "p4", "p5"}
	for i, p := range players {
		l.Place(p, int64((i+1)*100))
	}

	l.Remove("p2")
	l.Remove("p5")

	// Every registered address must have an entry and a correct index
	if len(l.bettors) != len(l.entries) || len(l.bettors) != len(l.index) {
		t.Fatalf("Registry, entries and index out of lock-step: %d/%d/%d",
			len(l.bettors), len(l.entries), len(l.index))
	}
	var total int64
	for pos, p := range l.bettors {
		if l.index[p] != pos {
			t.Errorf("Reverse index for %s is %d, want %d", p, l.index[p], pos)
		}
		entry := l.Entry(p)
		if entry == nil {
			t.Fatalf("Registered address %s has no entry", p)
		}
		total += entry.Amount
	}
	if total != l.Total() {
		t.Errorf("Sum of entries %d does not match total %d", total, l.Total())
	}
}

func TestBetLedgerReset(t *testing.T) {
	t.Parallel()

	l := NewBetLedger()
	l.Place("alice", 100)
	l.Place("bob", 200)

	l.Reset()

	if l.Size() != 0 || l.Total() != 0 {
		t.Errorf("Expected empty ledger after reset, got size=%d total=%d", l.Size(), l.Total())
	}
	if l.Has("alice") {
		t.Error("Entries should be discarded on reset")
	}

	// Ledger accepts fresh entries after a reset
	l.Place("carol", 300)
	if l.Size() != 1 || l.Total() != 300 {
		t.Errorf("Expected fresh entry after reset, got size=%d total=%d", l.Size(), l.Total())
	}
}
