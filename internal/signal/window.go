package signal

import (
	"time"

	"newsdroid/internal/domain"
)

// FilterWindow keeps headlines published strictly after now-window, in input order.
// Headlines without a usable timestamp are always dropped, even in pass-through mode.
func FilterWindow(records []domain.Headline, window domain.RecencyWindow, now time.Time) []domain.Headline {
	cutoff := now.Add(-window.Duration())
	out := make([]domain.Headline, 0, len(records))
	for _, r := range records {
		if r.PublishedAt.IsZero() {
			continue
		}
		if !window.PassThrough() && !r.PublishedAt.After(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}
