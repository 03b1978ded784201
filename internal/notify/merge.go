package notify

import (
	"sort"

	"github.com/matheus3301/socialsync/internal/model"
)

// Merge combines the live notifications (newest first) with a fetched page.
// Each id appears once; the live copy wins since it arrived later. The result
// is sorted newest first, ties keeping live items ahead.
func Merge(held, fetched []model.Notification) []model.Notification {
	seen := make(map[string]struct{}, len(held)+len(fetched))
	out := make([]model.Notification, 0, len(held)+len(fetched))
	add := func(n model.Notification) {
		if n.ID != "" {
			if _, dup := seen[n.ID]; dup {
				return
			}
			seen[n.ID] = struct{}{}
		}
		out = append(out, n)
	}
	for _, n := range held {
		add(n)
	}
	for _, n := range fetched {
		add(n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func countUnread(items []model.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}
