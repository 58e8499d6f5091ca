package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// mkSentence plants a stored sentence whose first word is the target.
func mkSentence(t *testing.T, db *store.DB, wordIDs ...int64) *store.Sentence {
	t.Helper()
	s := &store.Sentence{Text: "テスト文", TargetWordID: wordIDs[0], WordIDs: wordIDs}
	if err := db.CreateSentence(s); err != nil {
		t.Fatalf("create sentence: %v", err)
	}
	return s
}

func TestSentenceReviewPartialCredit(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	a := mkWord(t, e.DB, "語A")
	b := mkWord(t, e.DB, "語B")
	c := mkWord(t, e.DB, "語C")
	for _, w := range []*store.Word{a, b, c} {
		if _, err := e.Introduce(w.ID, now); err != nil {
			t.Fatalf("Introduce: %v", err)
		}
	}
	s := mkSentence(t, e.DB, a.ID, b.ID, c.ID)

	res, err := e.SubmitSentenceReview(s.ID, SignalPartial, []int64{b.ID}, "", now)
	if err != nil {
		t.Fatalf("SubmitSentenceReview: %v", err)
	}
	if len(res.Words) != 3 {
		t.Fatalf("credits = %d, want 3", len(res.Words))
	}

	byWord := map[int64]WordCredit{}
	for _, wc := range res.Words {
		byWord[wc.WordID] = wc
	}
	if wc := byWord[a.ID]; wc.Rating != 3 || wc.CreditType != CreditPrimary {
		t.Errorf("target credit = %+v, want rating 3 primary", wc)
	}
	if wc := byWord[b.ID]; wc.Rating != 1 || wc.CreditType != CreditCollateral {
		t.Errorf("missed credit = %+v, want rating 1 collateral", wc)
	}
	if wc := byWord[c.ID]; wc.Rating != 3 || wc.CreditType != CreditCollateral {
		t.Errorf("bystander credit = %+v, want rating 3 collateral", wc)
	}

	// The missed word reset to box 1; the others advanced to box 2.
	rec, _ := e.DB.GetRecord(b.ID)
	if *rec.AcquisitionBox != 1 {
		t.Errorf("missed word box = %d, want 1", *rec.AcquisitionBox)
	}
	for _, id := range []int64{a.ID, c.ID} {
		rec, _ := e.DB.GetRecord(id)
		if *rec.AcquisitionBox != 2 {
			t.Errorf("word %d box = %d, want 2", id, *rec.AcquisitionBox)
		}
	}
}

func TestSentenceReviewNoIdea(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	a := mkWord(t, e.DB, "分A")
	b := mkWord(t, e.DB, "分B")
	for _, w := range []*store.Word{a, b} {
		if _, err := e.Introduce(w.ID, now); err != nil {
			t.Fatalf("Introduce: %v", err)
		}
	}
	s := mkSentence(t, e.DB, a.ID, b.ID)

	res, err := e.SubmitSentenceReview(s.ID, SignalNoIdea, nil, "", now)
	if err != nil {
		t.Fatalf("SubmitSentenceReview: %v", err)
	}
	for _, wc := range res.Words {
		if wc.Rating != 1 {
			t.Errorf("word %d rating = %d under no_idea, want 1", wc.WordID, wc.Rating)
		}
	}
}

func TestSentenceReviewEncountersUnscheduledWords(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	target := mkWord(t, e.DB, "主")
	if _, err := e.Introduce(target.ID, now); err != nil {
		t.Fatalf("Introduce: %v", err)
	}
	stranger := mkWord(t, e.DB, "客")
	s := mkSentence(t, e.DB, target.ID, stranger.ID)

	res, err := e.SubmitSentenceReview(s.ID, SignalUnderstood, nil, "", now)
	if err != nil {
		t.Fatalf("SubmitSentenceReview: %v", err)
	}

	var strangerCredit *WordCredit
	for i := range res.Words {
		if res.Words[i].WordID == stranger.ID {
			strangerCredit = &res.Words[i]
		}
	}
	if strangerCredit == nil || !strangerCredit.Encounter {
		t.Fatalf("stranger credit = %+v, want an encounter bump", strangerCredit)
	}

	rec, _ := e.DB.GetRecord(stranger.ID)
	if rec == nil || rec.State != store.StateEncountered {
		t.Fatalf("stranger record = %+v, want encountered", rec)
	}
	if rec.AcquisitionBox != nil || rec.Card != nil {
		t.Error("incidental encounter created a scheduling regime")
	}
	if rec.TimesSeen != 1 || rec.TimesCorrect != 1 {
		t.Errorf("counters = %d/%d, want 1/1", rec.TimesCorrect, rec.TimesSeen)
	}
}

func TestSentenceReviewSkipsSuspended(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	target := mkWord(t, e.DB, "標")
	if _, err := e.Introduce(target.ID, now); err != nil {
		t.Fatalf("Introduce: %v", err)
	}
	parked := mkWord(t, e.DB, "駐")
	stamp := now.UnixMilli()
	if err := e.DB.CreateRecord(&store.KnowledgeRecord{
		WordID: parked.ID, State: store.StateSuspended, TimesSeen: 10, TimesCorrect: 3, LeechSuspendedAt: &stamp,
	}); err != nil {
		t.Fatalf("create record: %v", err)
	}
	s := mkSentence(t, e.DB, target.ID, parked.ID)

	res, err := e.SubmitSentenceReview(s.ID, SignalUnderstood, nil, "", now)
	if err != nil {
		t.Fatalf("SubmitSentenceReview: %v", err)
	}
	for _, wc := range res.Words {
		if wc.WordID == parked.ID && !wc.Skipped {
			t.Error("suspended word not skipped")
		}
	}

	rec, _ := e.DB.GetRecord(parked.ID)
	if rec.State != store.StateSuspended || rec.TimesSeen != 10 {
		t.Errorf("suspended record mutated: %+v", rec)
	}
}

func TestSentenceReviewIdempotency(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	a := mkWord(t, e.DB, "重A")
	b := mkWord(t, e.DB, "重B")
	for _, w := range []*store.Word{a, b} {
		if _, err := e.Introduce(w.ID, now); err != nil {
			t.Fatalf("Introduce: %v", err)
		}
	}
	s := mkSentence(t, e.DB, a.ID, b.ID)

	first, err := e.SubmitSentenceReview(s.ID, SignalUnderstood, nil, "sent-key", now)
	if err != nil {
		t.Fatalf("first submission: %v", err)
	}
	second, err := e.SubmitSentenceReview(s.ID, SignalUnderstood, nil, "sent-key", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("replayed submission: %v", err)
	}
	if !second.Duplicate {
		t.Error("replay not flagged duplicate")
	}
	if len(second.Words) != len(first.Words) {
		t.Errorf("replayed credits = %d, want %d", len(second.Words), len(first.Words))
	}

	// No double credit anywhere.
	for _, id := range []int64{a.ID, b.ID} {
		rec, _ := e.DB.GetRecord(id)
		if rec.TimesSeen != 1 {
			t.Errorf("word %d times_seen = %d after replay, want 1", id, rec.TimesSeen)
		}
	}
	sentence, _ := e.DB.GetSentence(s.ID)
	if sentence.TimesShown != 1 {
		t.Errorf("times_shown = %d after replay, want 1", sentence.TimesShown)
	}
}

func TestSentenceReviewValidation(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	if _, err := e.SubmitSentenceReview(1, "shrug", nil, "", now); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad signal: err = %v, want ErrInvalidInput", err)
	}
	if _, err := e.SubmitSentenceReview(404, SignalUnderstood, nil, "", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing sentence: err = %v, want ErrNotFound", err)
	}
}
