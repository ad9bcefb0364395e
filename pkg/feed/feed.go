// Package feed merges rec sets and activity entries into one timeline.
package feed

import (
	"sort"
	"time"

	"threebr/pkg/domain"
)

type Kind string

const (
	KindRecSet   Kind = "rec_set"
	KindActivity Kind = "activity"
)

// Item is one timeline entry. Exactly one of RecSet or Activity is set,
// according to Kind.
type Item struct {
	Kind      Kind             `json:"kind"`
	CreatedAt time.Time        `json:"createdAt"`
	RecSet    *domain.RecSet   `json:"recSet,omitempty"`
	Activity  *domain.Activity `json:"activity,omitempty"`
}

// Merge interleaves rec sets and activities newest first. Activities whose
// profile failed to load are dropped; so are non-joined activities missing
// their book. The sort is stable so equal timestamps keep rec sets ahead of
// activities.
func Merge(sets []domain.RecSet, activities []domain.Activity) []Item {
	items := make([]Item, 0, len(sets)+len(activities))
	for i := range sets {
		items = append(items, Item{
			Kind:      KindRecSet,
			CreatedAt: sets[i].CreatedAt,
			RecSet:    &sets[i],
		})
	}
	for i := range activities {
		if !renderable(activities[i]) {
			continue
		}
		items = append(items, Item{
			Kind:      KindActivity,
			CreatedAt: activities[i].CreatedAt,
			Activity:  &activities[i],
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func renderable(a domain.Activity) bool {
	if a.Profile == nil {
		return false
	}
	if a.Type == domain.ActivityJoined {
		return true
	}
	return a.Book != nil
}

// Statement returns the display phrase for a shelving activity.
func Statement(shelf domain.ShelfStatus) string {
	switch shelf {
	case domain.ShelfRead:
		return "finished reading"
	case domain.ShelfReading:
		return "started reading"
	case domain.ShelfToBeRead:
		return "wants to read"
	}
	return "shelved"
}
