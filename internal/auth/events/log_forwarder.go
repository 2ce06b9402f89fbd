package events

import (
	"context"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// LogForwarder writes events to the request logger. It stands in for the
// external forwarder when no broker is configured.
type LogForwarder struct{}

func (LogForwarder) Forward(ctx context.Context, e domain.Event) error {
	slogx.FromContext(ctx).Info("domain event",
		"event", e.Name,
		"entity_id", e.EntityID,
		"occurred_at", e.OccurredAt,
		"data", e.Data,
	)
	return nil
}
