package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// Every mutation of the cross-regime fields (card, acquisition box, state)
// goes through the named transitions in this file, so the one-regime
// invariant is enforced in a single place.

// strictInvariants makes invariant violations panic instead of logging.
// Tests turn this on; production logs and carries on.
var strictInvariants = false

// SetStrictInvariants toggles panic-on-violation for development and tests.
func SetStrictInvariants(v bool) { strictInvariants = v }

// checkInvariant verifies the record is in exactly one scheduling regime:
// a card, an acquisition box, or one of the uncarded states.
func checkInvariant(rec *store.KnowledgeRecord) {
	hasCard := len(rec.Card) > 0
	hasBox := rec.AcquisitionBox != nil
	bare := rec.State == store.StateNew || rec.State == store.StateEncountered || rec.State == store.StateSuspended

	regimes := 0
	if hasCard {
		regimes++
	}
	if hasBox {
		regimes++
	}
	if bare {
		regimes++
	}
	if regimes == 1 {
		// Regime must also match the state label.
		if hasBox && rec.State != store.StateAcquiring {
			violate(rec, "box without acquiring state")
			return
		}
		if hasCard && rec.State != store.StateLearning && rec.State != store.StateKnown && rec.State != store.StateLapsed {
			violate(rec, "card in state "+rec.State)
			return
		}
		return
	}
	violate(rec, fmt.Sprintf("%d scheduling regimes (card=%v box=%v state=%s)", regimes, hasCard, hasBox, rec.State))
}

func violate(rec *store.KnowledgeRecord, msg string) {
	if strictInvariants {
		panic(fmt.Sprintf("record %d invariant violation: %s", rec.WordID, msg))
	}
	log.Printf("record %d invariant violation: %s", rec.WordID, msg)
}

// enterAcquisition places a record into box 1 of the acquisition ladder.
func enterAcquisition(rec *store.KnowledgeRecord, now time.Time) {
	box := 1
	due := now.Add(boxDelays[0]).UnixMilli()
	rec.State = store.StateAcquiring
	rec.AcquisitionBox = &box
	rec.AcquisitionNextDue = &due
	rec.Card = nil
	checkInvariant(rec)
}

// advanceBox moves a correct acquiring record to the next box. The caller
// graduates instead when the record is already in the last box.
func advanceBox(rec *store.KnowledgeRecord, now time.Time) {
	box := 1
	if rec.AcquisitionBox != nil {
		box = *rec.AcquisitionBox + 1
	}
	if box > len(boxDelays) {
		box = len(boxDelays)
	}
	due := now.Add(boxDelays[box-1]).UnixMilli()
	rec.AcquisitionBox = &box
	rec.AcquisitionNextDue = &due
	checkInvariant(rec)
}

// resetBox sends an incorrect acquiring record back to box 1. A normal
// transition, not an error.
func resetBox(rec *store.KnowledgeRecord, now time.Time) {
	box := 1
	due := now.Add(boxDelays[0]).UnixMilli()
	rec.AcquisitionBox = &box
	rec.AcquisitionNextDue = &due
	checkInvariant(rec)
}

// graduate hands an acquiring record to the reviewer with a fresh card.
func (e *Engine) graduate(rec *store.KnowledgeRecord, now time.Time) error {
	card, _, err := e.Reviewer.NewCard(rec.WordID, now)
	if err != nil {
		return fmt.Errorf("graduate word %d: %w", rec.WordID, err)
	}
	grad := now.UnixMilli()
	rec.State = store.StateLearning
	rec.Card = card
	rec.AcquisitionBox = nil
	rec.AcquisitionNextDue = nil
	rec.GraduatedAt = &grad
	checkInvariant(rec)
	return nil
}

// suspendAsLeech parks a chronically failing record. Both scheduling
// regimes are cleared; the stamp marks it for automatic reintroduction.
func suspendAsLeech(rec *store.KnowledgeRecord, now time.Time) {
	stamp := now.UnixMilli()
	rec.State = store.StateSuspended
	rec.Card = nil
	rec.AcquisitionBox = nil
	rec.AcquisitionNextDue = nil
	rec.LeechSuspendedAt = &stamp
	checkInvariant(rec)
}

// suspendManually parks a record without the leech stamp, which exempts it
// from automatic reintroduction.
func suspendManually(rec *store.KnowledgeRecord) {
	rec.State = store.StateSuspended
	rec.Card = nil
	rec.AcquisitionBox = nil
	rec.AcquisitionNextDue = nil
	rec.LeechSuspendedAt = nil
	checkInvariant(rec)
}

// reintroduce returns a cooled-down leech to acquisition box 1 with reset
// counters.
func reintroduce(rec *store.KnowledgeRecord, now time.Time) {
	rec.TimesSeen = 0
	rec.TimesCorrect = 0
	rec.LeechSuspendedAt = nil
	enterAcquisition(rec, now)
}

// reactivate revives a suspended record straight into reviewer scheduling
// with a fresh card. Counters are kept: this is a re-encounter, not a leech
// reintroduction.
func (e *Engine) reactivate(rec *store.KnowledgeRecord, now time.Time) error {
	card, _, err := e.Reviewer.NewCard(rec.WordID, now)
	if err != nil {
		return fmt.Errorf("reactivate word %d: %w", rec.WordID, err)
	}
	rec.State = store.StateLearning
	rec.Card = card
	rec.AcquisitionBox = nil
	rec.AcquisitionNextDue = nil
	rec.LeechSuspendedAt = nil
	checkInvariant(rec)
	return nil
}
