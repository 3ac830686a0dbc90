package domain

import (
	"sort"
	"strings"
)

// Event is one item of an external ordered feed
type Event struct {
	ID        string // Platform ordering key (tweet id, publish time in ms, ...)
	Text      string
	AuthorRef string // Opaque author handle or id
	URL       string // Optional permalink
	TargetID  string // Handle used when acting on the event, if it differs from ID
}

// ReplyTarget returns the id outbound actions should address
func (e Event) ReplyTarget() string {
	if e.TargetID != "" {
		return e.TargetID
	}
	return e.ID
}

// CompareIDs orders two event ids the way the platforms do.
// Purely decimal ids compare numerically regardless of length and sort before
// every other id; non-decimal ids compare byte-wise among themselves.
func CompareIDs(a, b string) int {
	da, db := isDecimal(a), isDecimal(b)
	switch {
	case da && !db:
		return -1
	case !da && db:
		return 1
	case !da:
		return strings.Compare(a, b)
	}

	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SortEvents returns a copy of events sorted by ascending id
func SortEvents(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareIDs(sorted[i].ID, sorted[j].ID) < 0
	})
	return sorted
}

// Newest returns the event with the greatest id
func Newest(events []Event) (Event, bool) {
	if len(events) == 0 {
		return Event{}, false
	}
	newest := events[0]
	for _, ev := range events[1:] {
		if CompareIDs(ev.ID, newest.ID) > 0 {
			newest = ev
		}
	}
	return newest, true
}
