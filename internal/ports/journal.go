package ports

import (
	"context"
	"time"

	"github.com/veracore/veracore/internal/domain"
)

// Event is one committed mutating operation. Events are appended after
// full validation and before the in-memory apply, so a journal row is
// the unit of atomicity: either the whole operation is durable or none
// of it is.
type Event struct {
	Seq           int64            `json:"seq"`
	ID            string           `json:"id"`
	Kind          string           `json:"kind"`
	Payload       []byte           `json:"payload"`
	Actor         domain.Principal `json:"actor"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	RecordedAt    time.Time        `json:"recorded_at"`
}

// Journal is the append-only durable log behind all four engine
// components. Replay yields events in append order.
type Journal interface {
	Append(ctx context.Context, event *Event) error
	Replay(ctx context.Context, fn func(event *Event) error) error
}
