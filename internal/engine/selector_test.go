package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

func TestIntroduceIdempotent(t *testing.T) {
	e := testEngine(t)
	w := mkWord(t, e.DB, "本")
	now := time.Now()

	if _, err := e.Introduce(w.ID, now); err != nil {
		t.Fatalf("Introduce: %v", err)
	}
	before, _ := e.DB.GetRecord(w.ID)

	res, err := e.Introduce(w.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Introduce: %v", err)
	}
	if !res.AlreadyKnown {
		t.Error("second introduction not reported already_known")
	}

	after, _ := e.DB.GetRecord(w.ID)
	if after.State != before.State || *after.AcquisitionBox != *before.AcquisitionBox ||
		*after.AcquisitionNextDue != *before.AcquisitionNextDue || after.TimesSeen != before.TimesSeen {
		t.Errorf("second introduction mutated the record: %+v -> %+v", before, after)
	}
}

func TestIntroduceValidation(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	if _, err := e.Introduce(9999, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown word: err = %v, want ErrNotFound", err)
	}

	canonical := mkWord(t, e.DB, "食べる")
	variant := mkWord(t, e.DB, "喰べる")
	if err := e.DB.LinkVariant(variant.ID, canonical.ID); err != nil {
		t.Fatalf("LinkVariant: %v", err)
	}
	if _, err := e.Introduce(variant.ID, now); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("variant: err = %v, want ErrInvalidInput", err)
	}
}

func TestIntroduceReactivatesSuspended(t *testing.T) {
	e := testEngine(t)
	w := mkWord(t, e.DB, "再")
	now := time.Now()

	stamp := now.UnixMilli()
	if err := e.DB.CreateRecord(&store.KnowledgeRecord{
		WordID: w.ID, State: store.StateSuspended, TimesSeen: 10, TimesCorrect: 3, LeechSuspendedAt: &stamp,
	}); err != nil {
		t.Fatalf("create record: %v", err)
	}

	res, err := e.Introduce(w.ID, now)
	if err != nil {
		t.Fatalf("Introduce: %v", err)
	}
	if res.AlreadyKnown {
		t.Error("reactivation reported already_known")
	}

	rec, _ := e.DB.GetRecord(w.ID)
	if rec.State != store.StateLearning || len(rec.Card) == 0 {
		t.Errorf("state = %s card = %d bytes, want learning with a card", rec.State, len(rec.Card))
	}
	// A re-encounter keeps history, unlike a leech reintroduction.
	if rec.TimesSeen != 10 || rec.TimesCorrect != 3 {
		t.Errorf("counters = %d/%d, want preserved 3/10", rec.TimesCorrect, rec.TimesSeen)
	}
	if rec.LeechSuspendedAt != nil {
		t.Error("leech stamp survived reactivation")
	}
}

func TestSuspendUnsuspend(t *testing.T) {
	e := testEngine(t)
	w := mkWord(t, e.DB, "休")
	now := time.Now()
	if _, err := e.Introduce(w.ID, now); err != nil {
		t.Fatalf("Introduce: %v", err)
	}

	if err := e.Suspend(w.ID, now); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	rec, _ := e.DB.GetRecord(w.ID)
	if rec.State != store.StateSuspended || rec.LeechSuspendedAt != nil {
		t.Errorf("manual suspension: state=%s stamp=%v, want suspended with no stamp", rec.State, rec.LeechSuspendedAt)
	}

	if err := e.Unsuspend(w.ID, now); err != nil {
		t.Fatalf("Unsuspend: %v", err)
	}
	rec, _ = e.DB.GetRecord(w.ID)
	if rec.State != store.StateLearning {
		t.Errorf("state = %s after unsuspend, want learning", rec.State)
	}

	if err := e.Unsuspend(w.ID, now); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unsuspend active word: err = %v, want ErrInvalidInput", err)
	}
}

func TestFreqScore(t *testing.T) {
	if got := freqScore(nil); got != 0.3 {
		t.Errorf("freqScore(nil) = %v, want 0.3", got)
	}
	rank := 0
	if got := freqScore(&rank); got != 1 {
		t.Errorf("freqScore(0) = %v, want 1", got)
	}
	lo, hi := 100, 10
	if freqScore(&lo) >= freqScore(&hi) {
		t.Error("rarer word scored at least as high as a common one")
	}
}

func TestRootFamiliarityPeaksAtHalf(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	root := mkWord(t, e.DB, "食")
	rootID := root.ID
	intro := now.UnixMilli()
	if err := e.DB.CreateRecord(&store.KnowledgeRecord{
		WordID: root.ID, State: store.StateKnown,
		Card: stubBlob(t, 10, now.Add(24*time.Hour)), IntroducedAt: &intro,
	}); err != nil {
		t.Fatalf("create record: %v", err)
	}
	sibling := mkWord(t, e.DB, "食事", func(w *store.Word) { w.RootID = &rootID })
	candidate := mkWord(t, e.DB, "食堂", func(w *store.Word) { w.RootID = &rootID })

	// Family of candidate: root (known) + sibling (unrecorded) = 1/2 known.
	fam, _, err := e.rootFamiliarity(candidate)
	if err != nil {
		t.Fatalf("rootFamiliarity: %v", err)
	}
	if math.Abs(fam-1.0) > 1e-9 {
		t.Errorf("half-known family = %v, want the 4r(1-r) peak of 1.0", fam)
	}

	// Fully known family offers little new.
	if err := e.DB.CreateRecord(&store.KnowledgeRecord{
		WordID: sibling.ID, State: store.StateKnown, Card: stubBlob(t, 10, now),
	}); err != nil {
		t.Fatalf("create record: %v", err)
	}
	fam, _, err = e.rootFamiliarity(candidate)
	if err != nil {
		t.Fatalf("rootFamiliarity: %v", err)
	}
	if fam != 0.1 {
		t.Errorf("fully known family = %v, want 0.1", fam)
	}

	// Rootless words have no family signal.
	bare := mkWord(t, e.DB, "孤")
	if fam, _, _ := e.rootFamiliarity(bare); fam != 0 {
		t.Errorf("rootless word = %v, want 0", fam)
	}
}

func TestNextWordsOrderingAndExclusions(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	common := mkWord(t, e.DB, "水", func(w *store.Word) { r := 5; w.FreqRank = &r })
	rare := mkWord(t, e.DB, "瀑", func(w *store.Word) { r := 9000; w.FreqRank = &r })
	excluded := mkWord(t, e.DB, "外", func(w *store.Word) { r := 1; w.FreqRank = &r })

	// Already introduced words never come back as candidates.
	introduced := mkWord(t, e.DB, "既")
	if _, err := e.Introduce(introduced.ID, now); err != nil {
		t.Fatalf("Introduce: %v", err)
	}

	out, err := e.NextWords(10, []int64{excluded.ID}, now)
	if err != nil {
		t.Fatalf("NextWords: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("candidates = %d, want 2", len(out))
	}
	if out[0].Word.ID != common.ID || out[1].Word.ID != rare.ID {
		t.Errorf("order = [%d %d], want common %d first then rare %d",
			out[0].Word.ID, out[1].Word.ID, common.ID, rare.ID)
	}
	if out[0].Score <= out[1].Score {
		t.Errorf("scores not descending: %v then %v", out[0].Score, out[1].Score)
	}
}

func TestNextWordsDomainGate(t *testing.T) {
	e := testEngine(t)
	e.minTopicWords = 1
	now := time.Now()

	for i := 0; i < 3; i++ {
		mkWord(t, e.DB, string(rune('ら'+i)), func(w *store.Word) { w.Domain = "food" })
	}
	offTopic := mkWord(t, e.DB, "旅", func(w *store.Word) { w.Domain = "travel" })
	untagged := mkWord(t, e.DB, "中")

	out, err := e.NextWords(10, nil, now)
	if err != nil {
		t.Fatalf("NextWords: %v", err)
	}
	for _, c := range out {
		if c.Word.ID == offTopic.ID {
			t.Error("word from an inactive topic offered")
		}
	}
	found := false
	for _, c := range out {
		if c.Word.ID == untagged.ID {
			found = true
		}
	}
	if !found {
		t.Error("untagged word gated out; the topic gate only binds tagged words")
	}
}
