package engine

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// CohortEntry is one member of the focus cohort.
type CohortEntry struct {
	WordID    int64   `json:"word_id"`
	State     string  `json:"state"`
	Stability float64 `json:"stability"` // 0 for acquiring members
	Acquiring bool    `json:"acquiring"`
}

// CohortStats summarizes the focus cohort.
type CohortStats struct {
	Acquiring   int `json:"acquiring"`
	DueIncluded int `json:"due_included"`
	DueExcluded int `json:"due_excluded"`
	NotDue      int `json:"not_due"`
	Size        int `json:"size"`
	MaxSize     int `json:"max_size"`
}

// Cohort computes the capped set of words considered active. All acquiring
// records are always included regardless of due-ness; remaining slots go to
// due reviewer cards, shakiest (lowest stability) first. Pure view, no
// mutation.
func (e *Engine) Cohort(now time.Time) ([]CohortEntry, CohortStats, error) {
	acquiring, err := e.DB.RecordsByState(store.StateAcquiring)
	if err != nil {
		return nil, CohortStats{}, fmt.Errorf("cohort: %w", err)
	}

	carded, err := e.DB.CardedRecords()
	if err != nil {
		return nil, CohortStats{}, fmt.Errorf("cohort: %w", err)
	}

	var due []CohortEntry
	notDue := 0
	for i := range carded {
		info, err := e.Reviewer.Inspect(carded[i].Card)
		if err != nil {
			log.Printf("cohort: bad card for word %d: %v", carded[i].WordID, err)
			continue
		}
		if info.Due.After(now) {
			notDue++
			continue
		}
		due = append(due, CohortEntry{
			WordID:    carded[i].WordID,
			State:     carded[i].State,
			Stability: info.Stability,
		})
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].Stability != due[j].Stability {
			return due[i].Stability < due[j].Stability
		}
		return due[i].WordID < due[j].WordID
	})

	slots := e.maxCohortSize - len(acquiring)
	if slots < 0 {
		slots = 0
	}
	included := len(due)
	if included > slots {
		included = slots
	}

	cohort := make([]CohortEntry, 0, len(acquiring)+included)
	for i := range acquiring {
		cohort = append(cohort, CohortEntry{
			WordID:    acquiring[i].WordID,
			State:     store.StateAcquiring,
			Acquiring: true,
		})
	}
	cohort = append(cohort, due[:included]...)

	stats := CohortStats{
		Acquiring:   len(acquiring),
		DueIncluded: included,
		DueExcluded: len(due) - included,
		NotDue:      notDue,
		Size:        len(cohort),
		MaxSize:     e.maxCohortSize,
	}
	return cohort, stats, nil
}

// CohortStats reports the cohort summary without the member list.
func (e *Engine) CohortStats(now time.Time) (CohortStats, error) {
	_, stats, err := e.Cohort(now)
	return stats, err
}
