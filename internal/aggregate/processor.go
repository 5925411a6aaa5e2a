package aggregate

import (
	"context"
	"time"

	"shop-analytics/internal/model"
	"shop-analytics/internal/store"
)

// Stage names a processing stage inside the processor, for error reporting.
type Stage string

const (
	StageUser    Stage = "user_history"
	StageProduct Stage = "product_counters"
)

// EventError records a single per-event, per-stage failure.
type EventError struct {
	Index     int
	UserID    string
	ProductID string
	Action    model.Action
	Stage     Stage
	Err       error
}

// Report summarizes the outcome of one drained batch.
type Report struct {
	Processed int // events routed to the aggregators
	Dropped   int // unrecognized or missing action, discarded silently
	Skipped   int // recognized but currently unhandled (SHOP_VISIT)
	Errors    []EventError
}

// HasErrors reports whether any per-event failure was recorded.
func (r Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// Processor drives a batch through classification and both aggregators.
// It never retries and never lets one event's failure block its siblings;
// failures come back in the Report and logging is the caller's business.
type Processor struct {
	users        *UserHistory
	products     *ProductCounters
	applyTimeout time.Duration
}

// DefaultApplyTimeout bounds each persistence round trip so a hung gateway
// cannot stall the drain loop indefinitely.
const DefaultApplyTimeout = 10 * time.Second

// NewProcessor wires both aggregators against one gateway. A non-positive
// timeout falls back to DefaultApplyTimeout.
func NewProcessor(gateway store.Gateway, applyTimeout time.Duration) *Processor {
	if applyTimeout <= 0 {
		applyTimeout = DefaultApplyTimeout
	}
	return &Processor{
		users:        NewUserHistory(gateway),
		products:     NewProductCounters(gateway),
		applyTimeout: applyTimeout,
	}
}

// Process applies a drained batch in strict arrival order. Each event runs
// the user-history stage first, then the product-counter stage; the two are
// independent upserts, so a failure in one never rolls back or skips the
// other.
func (p *Processor) Process(ctx context.Context, batch []model.Event) Report {
	var report Report
	for i, evt := range batch {
		if !evt.Action.Recognized() {
			report.Dropped++
			continue
		}
		if evt.Action == model.ActionShopVisit {
			// Reserved: no aggregate consumes shop visits yet.
			report.Skipped++
			continue
		}
		report.Processed++

		if err := p.apply(ctx, p.users.Apply, evt); err != nil {
			report.Errors = append(report.Errors, newEventError(i, evt, StageUser, err))
		}
		if err := p.apply(ctx, p.products.Apply, evt); err != nil {
			report.Errors = append(report.Errors, newEventError(i, evt, StageProduct, err))
		}
	}
	return report
}

func (p *Processor) apply(ctx context.Context, fn func(context.Context, model.Event) error, evt model.Event) error {
	applyCtx, cancel := context.WithTimeout(ctx, p.applyTimeout)
	defer cancel()
	return fn(applyCtx, evt)
}

func newEventError(index int, evt model.Event, stage Stage, err error) EventError {
	return EventError{
		Index:     index,
		UserID:    evt.UserID,
		ProductID: evt.ProductID,
		Action:    evt.Action,
		Stage:     stage,
		Err:       err,
	}
}
