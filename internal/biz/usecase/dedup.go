package usecase

import "github.com/DevRickLin/social-reactor/internal/biz/domain"

// FilterNew returns the events of page that have not been handled yet, in
// ascending id order.
//
// With no watermark only the single newest event is returned, so the first run
// against a feed with history answers once instead of replying to everything.
func FilterNew(page []domain.Event, watermark string, found bool) []domain.Event {
	if len(page) == 0 {
		return nil
	}

	if !found {
		newest, _ := domain.Newest(page)
		return []domain.Event{newest}
	}

	sorted := domain.SortEvents(page)
	var fresh []domain.Event
	for _, ev := range sorted {
		if domain.CompareIDs(ev.ID, watermark) <= 0 {
			continue
		}
		// Pages can overlap at their boundary; keep one copy of each id
		if n := len(fresh); n > 0 && domain.CompareIDs(fresh[n-1].ID, ev.ID) == 0 {
			continue
		}
		fresh = append(fresh, ev)
	}
	return fresh
}
