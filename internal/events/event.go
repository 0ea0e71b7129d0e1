package events

import (
	"context"
	"errors"
	"time"
)

const TypeLineItemsAggregated = "lineitems.aggregated"

// Event announces a finished aggregation to panels and downstream consumers.
type Event struct {
	Type           string    `json:"type"`
	DealID         string    `json:"deal_id"`
	TotalFound     int       `json:"total_found"`
	TotalFormatted int       `json:"total_formatted"`
	ProductsFound  int       `json:"products_found"`
	At             time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// MultiPublisher fans an event out to every publisher. All of them are tried;
// their errors are joined.
type MultiPublisher struct {
	publishers []Publisher
}

func NewMultiPublisher(ps ...Publisher) *MultiPublisher {
	out := make([]Publisher, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return &MultiPublisher{publishers: out}
}

func (m *MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
