package store

import (
	"testing"
	"time"

	"github.com/swarmdeck/swarmdeck/internal/domain"
)

func card(id string, updatedAt time.Time) domain.Card {
	return domain.Card{
		ID:        id,
		Title:     "Card " + id,
		State:     "coding",
		UpdatedAt: updatedAt,
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := New[domain.Card]()
	now := time.Now()

	if !s.Upsert(card("c1", now)) {
		t.Fatal("First upsert should apply")
	}

	got, ok := s.Get("c1")
	if !ok {
		t.Fatal("Get should find the upserted card")
	}
	if got.Title != "Card c1" {
		t.Errorf("Expected title 'Card c1', got %q", got.Title)
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 item, got %d", s.Len())
	}
}

func TestStore_UpsertFullReplace(t *testing.T) {
	s := New[domain.Card]()
	now := time.Now()

	first := card("c1", now)
	first.Labels = []string{"backend"}
	s.Upsert(first)

	// A later snapshot without labels replaces the old snapshot
	// entirely; fields are never merged.
	second := card("c1", now.Add(time.Second))
	s.Upsert(second)

	got, _ := s.Get("c1")
	if len(got.Labels) != 0 {
		t.Errorf("Expected labels replaced away, got %v", got.Labels)
	}
}

func TestStore_StaleWriteDiscarded(t *testing.T) {
	s := New[domain.Card]()
	t2 := time.Now()
	t1 := t2.Add(-5 * time.Second)

	fresh := card("x", t2)
	fresh.Title = "fresh"
	s.Upsert(fresh)

	// A buffered push event that arrives after a faster REST response
	// must not regress the snapshot.
	stale := card("x", t1)
	stale.Title = "stale"
	if s.Upsert(stale) {
		t.Error("Stale upsert should report not applied")
	}

	got, _ := s.Get("x")
	if got.Title != "fresh" {
		t.Errorf("Store should retain the fresh snapshot, got %q", got.Title)
	}
}

func TestStore_EqualTimestampLastWriteWins(t *testing.T) {
	s := New[domain.Card]()
	now := time.Now()

	a := card("x", now)
	a.Title = "first"
	b := card("x", now)
	b.Title = "second"

	s.Upsert(a)
	if !s.Upsert(b) {
		t.Fatal("Equal-timestamp write should apply (arrival order wins)")
	}

	got, _ := s.Get("x")
	if got.Title != "second" {
		t.Errorf("Expected last write to win, got %q", got.Title)
	}
}

func TestStore_LastAppliedWriteVisible(t *testing.T) {
	s := New[domain.Card]()
	base := time.Now()

	// Interleave applied and discarded writes; Get must always return
	// the payload of the last write that was not discarded.
	writes := []struct {
		title  string
		offset time.Duration
		apply  bool
	}{
		{"w1", 0, true},
		{"w2", 2 * time.Second, true},
		{"w-old", 1 * time.Second, false},
		{"w3", 3 * time.Second, true},
		{"w-older", 0, false},
	}

	for _, w := range writes {
		c := card("x", base.Add(w.offset))
		c.Title = w.title
		applied := s.Upsert(c)
		if applied != w.apply {
			t.Errorf("Write %q: applied=%v, want %v", w.title, applied, w.apply)
		}
	}

	got, _ := s.Get("x")
	if got.Title != "w3" {
		t.Errorf("Expected last applied write 'w3', got %q", got.Title)
	}
}

func TestStore_Remove(t *testing.T) {
	s := New[domain.Card]()
	s.Upsert(card("c1", time.Now()))

	if !s.Remove("c1") {
		t.Error("Remove should report the card was present")
	}
	if _, ok := s.Get("c1"); ok {
		t.Error("Removed card should be gone")
	}
	if s.Remove("c1") {
		t.Error("Removing an absent id should report false")
	}
}

func TestStore_RemoveThenRecreate(t *testing.T) {
	s := New[domain.Card]()
	old := time.Now()

	s.Upsert(card("c1", old))
	s.Remove("c1")

	// After deletion the staleness guard has nothing to compare
	// against; any snapshot recreates the entity.
	if !s.Upsert(card("c1", old.Add(-time.Minute))) {
		t.Error("Upsert after removal should apply regardless of timestamp")
	}
}

func TestStore_Watch(t *testing.T) {
	s := New[domain.Card]()

	var calls int
	s.Watch(func() { calls++ })

	s.Upsert(card("c1", time.Now()))
	s.Remove("c1")
	s.Remove("c1") // absent, no notification

	if calls != 2 {
		t.Errorf("Expected 2 notifications, got %d", calls)
	}
}

func TestStore_WatchNotCalledOnStaleWrite(t *testing.T) {
	s := New[domain.Card]()
	now := time.Now()
	s.Upsert(card("c1", now))

	var calls int
	s.Watch(func() { calls++ })

	s.Upsert(card("c1", now.Add(-time.Second)))

	if calls != 0 {
		t.Errorf("Stale write should not notify watchers, got %d calls", calls)
	}
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := New[domain.Card]()
	s.Upsert(card("c1", time.Now()))
	s.Upsert(card("c2", time.Now()))

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(all))
	}

	all[0].Title = "mutated"
	for _, c := range s.All() {
		if c.Title == "mutated" {
			t.Error("Mutating the returned slice should not affect the store")
		}
	}
}

func TestStore_Clear(t *testing.T) {
	s := New[domain.Card]()
	s.Upsert(card("c1", time.Now()))
	s.Upsert(card("c2", time.Now()))

	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Expected empty store after Clear, got %d", s.Len())
	}
}
