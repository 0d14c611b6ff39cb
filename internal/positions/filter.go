package positions

import "github.com/pscheid92/thereiwas/internal/domain"

// FilterByAccuracy keeps records whose horizontal accuracy is at most maxAccuracy, in order.
func FilterByAccuracy(records []domain.Position, maxAccuracy float64) []domain.Position {
	kept := make([]domain.Position, 0, len(records))
	for _, r := range records {
		if r.HorizontalAccuracy <= maxAccuracy {
			kept = append(kept, r)
		}
	}
	return kept
}
