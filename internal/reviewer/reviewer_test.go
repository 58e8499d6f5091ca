package reviewer

import (
	"testing"
	"time"
)

func TestNewCardDueImmediately(t *testing.T) {
	f, err := NewFSRS()
	if err != nil {
		t.Fatalf("NewFSRS: %v", err)
	}

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	blob, info, err := f.NewCard(42, now)
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}
	if len(blob) == 0 {
		t.Fatal("empty card blob")
	}
	if !info.Due.Equal(now) {
		t.Errorf("due = %v, want %v", info.Due, now)
	}
	if info.Stability != 0 {
		t.Errorf("fresh card stability = %f, want 0", info.Stability)
	}
	if info.State != "Learning" {
		t.Errorf("state = %q, want Learning", info.State)
	}
}

func TestReviewAdvancesDue(t *testing.T) {
	f, _ := NewFSRS()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	blob, _, _ := f.NewCard(1, now)

	next, info, err := f.Review(blob, 3, now)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !info.Due.After(now) {
		t.Errorf("due %v should advance past %v", info.Due, now)
	}
	if info.Stability <= 0 {
		t.Errorf("stability = %f after first review, want > 0", info.Stability)
	}

	// Round-trip through Inspect matches the review result.
	inspected, err := f.Inspect(next)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if inspected.Stability != info.Stability {
		t.Errorf("inspect stability = %f, want %f", inspected.Stability, info.Stability)
	}
}

func TestReviewRatingBounds(t *testing.T) {
	f, _ := NewFSRS()
	now := time.Now()
	blob, _, _ := f.NewCard(1, now)

	for _, bad := range []int{0, 5, -1} {
		if _, _, err := f.Review(blob, bad, now); err == nil {
			t.Errorf("rating %d should be rejected", bad)
		}
	}
}

func TestReviewGarbageCard(t *testing.T) {
	f, _ := NewFSRS()
	if _, _, err := f.Review([]byte("not json"), 3, time.Now()); err == nil {
		t.Error("expected error for garbage card blob")
	}
	if _, err := f.Inspect([]byte("{broken")); err == nil {
		t.Error("expected error for garbage inspect")
	}
}

func TestRepeatedGoodReviewsGrowStability(t *testing.T) {
	f, _ := NewFSRS()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	blob, _, _ := f.NewCard(1, now)

	var last float64
	for i := 0; i < 5; i++ {
		var info CardInfo
		var err error
		blob, info, err = f.Review(blob, 3, now)
		if err != nil {
			t.Fatalf("review %d: %v", i, err)
		}
		if info.Stability < last {
			t.Errorf("stability fell from %f to %f on review %d", last, info.Stability, i)
		}
		last = info.Stability
		now = info.Due
	}
}
