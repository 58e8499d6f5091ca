package engine

import (
	"encoding/json"
	"log"
	"time"

	"github.com/kotobaworks/kotoba/internal/config"
	"github.com/kotobaworks/kotoba/internal/llm"
	"github.com/kotobaworks/kotoba/internal/morph"
	"github.com/kotobaworks/kotoba/internal/reviewer"
	"github.com/kotobaworks/kotoba/internal/store"
)

// Scheduling constants. The acquisition ladder gives a new word three short
// touches before handing it to the long-horizon reviewer.
const (
	leechMinSeen       = 8
	leechAccuracyFloor = 0.40
	leechCooldown      = 14 * 24 * time.Hour

	defaultMaxCohortSize = 100
	defaultMinTopicWords = 5
	defaultMaxTopicBatch = 15

	listeningThreshold = 0.6
	listeningMaxWords  = 10

	generateRetryBudget = 3
)

// boxDelays holds the fixed delay before each acquisition box comes due
// again, indexed by box-1.
var boxDelays = [3]time.Duration{4 * time.Hour, 24 * time.Hour, 72 * time.Hour}

// Engine orchestrates word introduction, review scheduling, leech handling,
// topic rotation, and grammar unlocks over one learner's store.
type Engine struct {
	DB       *store.DB
	Reviewer reviewer.Reviewer
	LLM      llm.Client
	Morph    *morph.Lookup
	Analyzer *morph.Analyzer // optional; sentence validation degrades without it

	maxCohortSize int
	minTopicWords int
	maxTopicBatch int

	tasks  chan func()
	stopCh chan struct{}
}

// New creates an Engine. The LLM client may be nil; sentence generation then
// reports ErrUpstreamUnavailable.
func New(db *store.DB, rev reviewer.Reviewer, client llm.Client, cfg config.EngineConfig) *Engine {
	e := &Engine{
		DB:            db,
		Reviewer:      rev,
		LLM:           client,
		Morph:         morph.NewLookup(db),
		maxCohortSize: cfg.MaxCohortSize,
		minTopicWords: cfg.MinTopicWords,
		maxTopicBatch: cfg.MaxTopicBatch,
		tasks:         make(chan func(), 256),
		stopCh:        make(chan struct{}),
	}
	if e.maxCohortSize <= 0 {
		e.maxCohortSize = defaultMaxCohortSize
	}
	if e.minTopicWords <= 0 {
		e.minTopicWords = defaultMinTopicWords
	}
	if e.maxTopicBatch <= 0 {
		e.maxTopicBatch = defaultMaxTopicBatch
	}
	return e
}

// SetAnalyzer configures the morphological analyzer used for sentence
// validation and lemma mapping.
func (e *Engine) SetAnalyzer(a *morph.Analyzer) {
	e.Analyzer = a
}

// Start launches the background task worker. Tasks are fire-and-forget:
// they run strictly after the synchronous state transition that published
// them, and their failures never roll anything back.
func (e *Engine) Start() {
	go func() {
		for {
			select {
			case fn := <-e.tasks:
				fn()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// StartSweepTimer runs the leech sweep on startup and then every 6 hours.
func (e *Engine) StartSweepTimer() {
	sweep := func() {
		now := time.Now()
		if n, err := e.ScanLeeches(now); err != nil {
			log.Printf("leech scan error: %v", err)
		} else if n > 0 {
			log.Printf("leech scan: suspended %d words", n)
		}
		if n, err := e.CheckReintroductions(now); err != nil {
			log.Printf("leech reintro error: %v", err)
		} else if n > 0 {
			log.Printf("leech reintro: reintroduced %d words", n)
		}
	}

	sweep()

	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweep()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// enqueue publishes a background task. A full queue drops the task with a
// log line rather than blocking the caller.
func (e *Engine) enqueue(fn func()) {
	select {
	case e.tasks <- fn:
	default:
		log.Printf("engine: task queue full, dropping task")
	}
}

// audit publishes a fire-and-forget activity entry.
func (e *Engine) audit(eventType, summary string, detail any) {
	var detailJSON string
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			detailJSON = string(b)
		}
	}
	e.enqueue(func() {
		if err := e.DB.LogActivity(eventType, summary, detailJSON); err != nil {
			log.Printf("audit %s: %v", eventType, err)
		}
	})
}

// drainTasks runs queued tasks synchronously. Test helper.
func (e *Engine) drainTasks() {
	for {
		select {
		case fn := <-e.tasks:
			fn()
		default:
			return
		}
	}
}
