package recommend

import "time"

// EventType names a progress event emitted while a batch runs.
type EventType string

const (
	EventCompanyScored  EventType = "company_scored"
	EventCompanyDropped EventType = "company_dropped"
	EventBatchCompleted EventType = "batch_completed"
)

// Event reports progress for one batch. Done counts companies finished
// (scored or dropped) out of Total.
type Event struct {
	Type    EventType `json:"type"`
	BatchID string    `json:"batchId"`
	Company string    `json:"company,omitempty"`
	Score   float64   `json:"score,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Done    int       `json:"done"`
	Total   int       `json:"total"`
	Status  string    `json:"status,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer receives progress events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
