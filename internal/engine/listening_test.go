package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

func TestAuralConfidenceBands(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	unseen := mkWord(t, e.DB, "未")
	if got, _ := e.auralConfidence(unseen.ID, now); got != 0 {
		t.Errorf("no record = %v, want 0", got)
	}

	lapsed := mkWord(t, e.DB, "忘")
	plantCarded(t, e, lapsed.ID, store.StateLapsed, 5, now)
	rec, _ := e.DB.GetRecord(lapsed.ID)
	rec.TimesSeen = 10
	rec.TimesCorrect = 8
	if err := e.DB.UpdateRecord(rec); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	if got, _ := e.auralConfidence(lapsed.ID, now); got != 0.1 {
		t.Errorf("lapsed = %v, want 0.1", got)
	}

	young := mkWord(t, e.DB, "若")
	plantCarded(t, e, young.ID, store.StateKnown, 50, now)
	if got, _ := e.auralConfidence(young.ID, now); got != 0.2 {
		t.Errorf("under 3 reviews = %v, want 0.2", got)
	}

	bands := []struct {
		stability float64
		want      float64
	}{
		{0.5, 0.3},
		{3, 0.5},
		{15, 0.7},
	}
	for i, band := range bands {
		w := mkWord(t, e.DB, fmt.Sprintf("帯%d", i))
		plantCarded(t, e, w.ID, store.StateKnown, band.stability, now)
		rec, _ := e.DB.GetRecord(w.ID)
		rec.TimesSeen = 10
		rec.TimesCorrect = 8
		if err := e.DB.UpdateRecord(rec); err != nil {
			t.Fatalf("UpdateRecord: %v", err)
		}
		if got, _ := e.auralConfidence(w.ID, now); got != band.want {
			t.Errorf("stability %v = %v, want %v", band.stability, got, band.want)
		}
	}

	// Rock solid: 0.7 plus the accuracy share.
	solid := mkWord(t, e.DB, "固")
	plantCarded(t, e, solid.ID, store.StateKnown, 90, now)
	rec, _ = e.DB.GetRecord(solid.ID)
	rec.TimesSeen = 10
	rec.TimesCorrect = 8
	if err := e.DB.UpdateRecord(rec); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	got, _ := e.auralConfidence(solid.ID, now)
	want := 0.7 + 0.8*0.3
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("solid word = %v, want %v", got, want)
	}
}

func TestListeningReadiness(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	target := mkWord(t, e.DB, "的")
	if _, err := e.Introduce(target.ID, now); err != nil {
		t.Fatalf("Introduce: %v", err)
	}

	solid := mkWord(t, e.DB, "盤")
	plantCarded(t, e, solid.ID, store.StateKnown, 15, now)
	rec, _ := e.DB.GetRecord(solid.ID)
	rec.TimesSeen = 10
	rec.TimesCorrect = 9
	if err := e.DB.UpdateRecord(rec); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	shaky := mkWord(t, e.DB, "揺")
	plantCarded(t, e, shaky.ID, store.StateKnown, 3, now)
	rec, _ = e.DB.GetRecord(shaky.ID)
	rec.TimesSeen = 10
	rec.TimesCorrect = 6
	if err := e.DB.UpdateRecord(rec); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	s := mkSentence(t, e.DB, target.ID, solid.ID, shaky.ID)
	report, err := e.ListeningReadiness(s.ID, now)
	if err != nil {
		t.Fatalf("ListeningReadiness: %v", err)
	}

	// min 0.5, mean 0.6; the weakest link dominates.
	want := 0.6*0.5 + 0.4*0.6
	if diff := report.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", report.Confidence, want)
	}
	if report.Eligible {
		t.Error("sentence eligible below the confidence threshold")
	}
	if _, ok := report.WordScores[target.ID]; ok {
		t.Error("target word scored; it is exempt")
	}
}

func TestListeningReadinessTargetOnly(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	target := mkWord(t, e.DB, "独")
	if _, err := e.Introduce(target.ID, now); err != nil {
		t.Fatalf("Introduce: %v", err)
	}
	s := mkSentence(t, e.DB, target.ID)

	report, err := e.ListeningReadiness(s.ID, now)
	if err != nil {
		t.Fatalf("ListeningReadiness: %v", err)
	}
	if report.Confidence != 1.0 || !report.Eligible {
		t.Errorf("report = %+v, want full confidence and eligible", report)
	}
}

func TestListeningReadinessLengthCap(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	ids := make([]int64, 0, 11)
	for i := 0; i < 11; i++ {
		w := mkWord(t, e.DB, string(rune('な'+i)))
		if i > 0 {
			plantCarded(t, e, w.ID, store.StateKnown, 90, now)
			rec, _ := e.DB.GetRecord(w.ID)
			rec.TimesSeen = 10
			rec.TimesCorrect = 10
			if err := e.DB.UpdateRecord(rec); err != nil {
				t.Fatalf("UpdateRecord: %v", err)
			}
		}
		ids = append(ids, w.ID)
	}
	s := mkSentence(t, e.DB, ids...)

	report, err := e.ListeningReadiness(s.ID, now)
	if err != nil {
		t.Fatalf("ListeningReadiness: %v", err)
	}
	if report.Confidence < listeningThreshold {
		t.Fatalf("confidence = %v, expected it comfortably over threshold", report.Confidence)
	}
	if report.Eligible {
		t.Error("11-word sentence eligible; aural practice caps at 10")
	}

	if _, err := e.ListeningReadiness(404, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing sentence: err = %v, want ErrNotFound", err)
	}
}
