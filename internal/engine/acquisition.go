package engine

import (
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// advanceAcquisition applies one review outcome to an acquiring record:
// correct climbs the ladder (box1 → box2 → box3 → graduate into the
// reviewer), incorrect resets to box 1. Counter updates belong to the
// caller; the reset still counts toward the leech ratio there.
func (e *Engine) advanceAcquisition(rec *store.KnowledgeRecord, correct bool, now time.Time) error {
	if !correct {
		resetBox(rec, now)
		return nil
	}
	if rec.AcquisitionBox != nil && *rec.AcquisitionBox >= len(boxDelays) {
		return e.graduate(rec, now)
	}
	advanceBox(rec, now)
	return nil
}
