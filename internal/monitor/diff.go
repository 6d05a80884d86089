package monitor

import (
	"tab-inspector/internal/entity"
)

// Diff compares the previous reference set with the current listing. It
// returns the change event and the reference set that replaces prev; prev
// itself is never modified. Navigated tabs get a fresh reference.
func Diff(prev map[string]entity.TabReference, current []entity.BrowserTarget) (entity.TabChangeEvent, map[string]entity.TabReference) {
	event := entity.TabChangeEvent{Current: current}
	next := make(map[string]entity.TabReference, len(current))

	for _, t := range current {
		if _, dup := next[t.ID]; dup {
			continue
		}

		old, known := prev[t.ID]

		switch {
		case !known:
			event.Added = append(event.Added, t)
			next[t.ID] = entity.NewTabReference(t)
		case old.URL != t.URL:
			event.Navigated = append(event.Navigated, entity.NavigatedTab{Target: t, Previous: old})
			next[t.ID] = entity.NewTabReference(t)
		default:
			next[t.ID] = old
		}
	}

	for _, id := range sortedIDs(prev) {
		if _, ok := next[id]; !ok {
			event.Removed = append(event.Removed, prev[id])
		}
	}

	return event, next
}
