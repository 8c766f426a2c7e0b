package scheduler

type State string

const (
	StateQueued    State = "queued"
	StateFetched   State = "fetched"
	StateExtracted State = "extracted"
	StateCommitted State = "committed"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

// Event is one per-node state transition.
type Event struct {
	Locator  string
	Depth    int
	State    State
	PageID   int64
	Replayed bool
	Err      error
}

// Observer receives state transitions synchronously from the crawl loop.
type Observer func(Event)

func (s *Scheduler) emit(e Event) {
	if s.observer != nil {
		s.observer(e)
	}
}
