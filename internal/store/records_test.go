package store

import (
	"testing"
	"time"
)

func mkWord(t *testing.T, db *DB, bare string) *Word {
	t.Helper()
	w := &Word{Bare: bare, POS: "noun", Gloss: "test gloss"}
	if err := db.CreateWord(w); err != nil {
		t.Fatalf("CreateWord(%q): %v", bare, err)
	}
	return w
}

func TestCreateAndGetRecord(t *testing.T) {
	db := testDB(t)
	w := mkWord(t, db, "水")

	box := 1
	due := time.Now().Add(4 * time.Hour).UnixMilli()
	intro := time.Now().UnixMilli()
	rec := &KnowledgeRecord{
		WordID:             w.ID,
		State:              StateAcquiring,
		AcquisitionBox:     &box,
		AcquisitionNextDue: &due,
		IntroducedAt:       &intro,
	}
	if err := db.CreateRecord(rec); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	got, err := db.GetRecord(w.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.State != StateAcquiring {
		t.Errorf("state = %q, want acquiring", got.State)
	}
	if got.AcquisitionBox == nil || *got.AcquisitionBox != 1 {
		t.Errorf("box = %v, want 1", got.AcquisitionBox)
	}
	if got.Card != nil {
		t.Error("acquiring record should carry no card")
	}
}

func TestGetRecordMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetRecord(9999)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing record")
	}
}

func TestUpdateRecordSwitchesRegime(t *testing.T) {
	db := testDB(t)
	w := mkWord(t, db, "火")

	box := 3
	rec := &KnowledgeRecord{WordID: w.ID, State: StateAcquiring, AcquisitionBox: &box}
	if err := db.CreateRecord(rec); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	// Graduate: box cleared, card set
	grad := time.Now().UnixMilli()
	rec.State = StateLearning
	rec.AcquisitionBox = nil
	rec.AcquisitionNextDue = nil
	rec.Card = []byte(`{"card_id":1,"state":"Learning"}`)
	rec.GraduatedAt = &grad
	if err := db.UpdateRecord(rec); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	got, _ := db.GetRecord(w.ID)
	if got.AcquisitionBox != nil {
		t.Error("box should be cleared after graduation")
	}
	if got.Card == nil {
		t.Error("card should be set after graduation")
	}
	if got.GraduatedAt == nil {
		t.Error("graduated_at should be stamped")
	}
}

func TestRecordsByState(t *testing.T) {
	db := testDB(t)

	states := []string{StateAcquiring, StateLearning, StateKnown, StateSuspended}
	for i, s := range states {
		w := mkWord(t, db, "word"+string(rune('a'+i)))
		rec := &KnowledgeRecord{WordID: w.ID, State: s}
		if s == StateAcquiring {
			box := 1
			rec.AcquisitionBox = &box
		}
		if err := db.CreateRecord(rec); err != nil {
			t.Fatalf("CreateRecord: %v", err)
		}
	}

	got, err := db.RecordsByState(StateLearning, StateKnown)
	if err != nil {
		t.Fatalf("RecordsByState: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestKnownWordCount(t *testing.T) {
	db := testDB(t)

	w1 := mkWord(t, db, "一")
	w2 := mkWord(t, db, "二")
	w3 := mkWord(t, db, "三")
	db.CreateRecord(&KnowledgeRecord{WordID: w1.ID, State: StateKnown, Card: []byte(`{}`)})
	db.CreateRecord(&KnowledgeRecord{WordID: w2.ID, State: StateLearning, Card: []byte(`{}`)})
	db.CreateRecord(&KnowledgeRecord{WordID: w3.ID, State: StateEncountered})

	n, err := db.KnownWordCount()
	if err != nil {
		t.Fatalf("KnownWordCount: %v", err)
	}
	if n != 2 {
		t.Errorf("known count = %d, want 2", n)
	}
}

func TestAccuracy(t *testing.T) {
	r := &KnowledgeRecord{TimesSeen: 10, TimesCorrect: 3}
	if got := r.Accuracy(); got != 0.3 {
		t.Errorf("accuracy = %f, want 0.3", got)
	}
	empty := &KnowledgeRecord{}
	if got := empty.Accuracy(); got != 0 {
		t.Errorf("accuracy with no reviews = %f, want 0", got)
	}
}
