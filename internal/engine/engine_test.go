package engine

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/kotobaworks/kotoba/internal/config"
	"github.com/kotobaworks/kotoba/internal/reviewer"
	"github.com/kotobaworks/kotoba/internal/store"
)

func TestMain(m *testing.M) {
	SetStrictInvariants(true)
	os.Exit(m.Run())
}

// stubCard is the opaque blob format of the stub reviewer. Tests use it to
// plant cards with exact stabilities and due times.
type stubCard struct {
	WordID    int64     `json:"word_id"`
	Stability float64   `json:"stability"`
	Due       time.Time `json:"due"`
	State     string    `json:"state"`
}

// stubReviewer is a deterministic Reviewer: correct answers add the rating
// to stability and push due out a day, rating 1 halves stability and flips
// the card to Relearning.
type stubReviewer struct{}

func (stubReviewer) NewCard(wordID int64, now time.Time) ([]byte, reviewer.CardInfo, error) {
	c := stubCard{WordID: wordID, Due: now, State: "Learning"}
	blob, err := json.Marshal(c)
	return blob, reviewer.CardInfo{Due: c.Due, State: c.State}, err
}

func (stubReviewer) Review(blob []byte, rating int, now time.Time) ([]byte, reviewer.CardInfo, error) {
	var c stubCard
	if err := json.Unmarshal(blob, &c); err != nil {
		return nil, reviewer.CardInfo{}, err
	}
	if rating == 1 {
		c.Stability /= 2
		c.State = "Relearning"
		c.Due = now.Add(10 * time.Minute)
	} else {
		c.Stability += float64(rating)
		c.State = "Review"
		c.Due = now.Add(24 * time.Hour)
	}
	out, err := json.Marshal(c)
	return out, reviewer.CardInfo{Stability: c.Stability, Due: c.Due, State: c.State}, err
}

func (stubReviewer) Inspect(blob []byte) (reviewer.CardInfo, error) {
	var c stubCard
	if err := json.Unmarshal(blob, &c); err != nil {
		return reviewer.CardInfo{}, err
	}
	return reviewer.CardInfo{Stability: c.Stability, Due: c.Due, State: c.State}, nil
}

func stubBlob(t *testing.T, stability float64, due time.Time) []byte {
	t.Helper()
	blob, err := json.Marshal(stubCard{Stability: stability, Due: due, State: "Review"})
	if err != nil {
		t.Fatalf("marshal stub card: %v", err)
	}
	return blob
}

// testEngine builds an engine over an in-memory store with the stub
// reviewer and no LLM client.
func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, stubReviewer{}, nil, config.EngineConfig{})
}

func mkWord(t *testing.T, db *store.DB, bare string, mut ...func(*store.Word)) *store.Word {
	t.Helper()
	w := &store.Word{Bare: bare, Reading: bare, POS: "noun", Gloss: "gloss of " + bare}
	for _, m := range mut {
		m(w)
	}
	if err := db.CreateWord(w); err != nil {
		t.Fatalf("create word %q: %v", bare, err)
	}
	return w
}

// plantCarded inserts a record with a reviewer card at an exact stability.
func plantCarded(t *testing.T, e *Engine, wordID int64, state string, stability float64, due time.Time) {
	t.Helper()
	rec := &store.KnowledgeRecord{
		WordID: wordID,
		State:  state,
		Card:   stubBlob(t, stability, due),
	}
	if err := e.DB.CreateRecord(rec); err != nil {
		t.Fatalf("plant carded record %d: %v", wordID, err)
	}
}
