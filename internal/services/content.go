package services

import (
	"context"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/contentfilter"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/notify"
	"github.com/google/uuid"
)

// filterText runs text through the content filter and records any hits.
// Blocked items go to the audit log only; they are never returned to the
// counterparty.
func filterText(f *contentfilter.Filter, actorID uuid.UUID, field, text string) contentfilter.Result {
	res := f.Filter(text)
	if !res.Blocked() {
		return res
	}
	for _, k := range res.Kinds {
		metrics.ContentFilterHits.WithLabelValues(string(k)).Inc()
	}
	slog.Warn("contact details redacted",
		"action", "content_filtered",
		"user_id", actorID.String(),
		"field", field,
		"blocked_items", res.BlockedItems,
	)
	return res
}

// dispatch hands an event to the notifier. Failures are logged and dropped.
func dispatch(ctx context.Context, n notify.Dispatcher, userID uuid.UUID, kind notify.Kind, payload map[string]any) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, kind, payload); err != nil {
		slog.Warn("notification failed",
			"action", "notify",
			"user_id", userID.String(),
			"kind", string(kind),
			"error", err.Error(),
		)
	}
}
