package entity

import (
	"sort"
	"time"
)

// ListingEventType - how an event changes the public game list.
type ListingEventType string

const (
	ListingAdd    ListingEventType = "ADD"
	ListingDelete ListingEventType = "DELETE"
)

// ListingEvent - log record marking a game as newly open or no longer open.
type ListingEvent struct {
	ID        string           `json:"-"`
	CreatedAt time.Time        `json:"createdAt"`
	GameID    string           `json:"gameId"`
	Type      ListingEventType `json:"type"`
}

// RunMarker - ratcheted deadline until which the aggregator keeps draining.
type RunMarker struct {
	RunUntil time.Time `json:"runUntil"`
}

// PublicListing - open games keyed by id with their creation time.
type PublicListing struct {
	List map[string]time.Time `json:"list"`
}

// ListingUpdate - one merge write against the public listing.
type ListingUpdate struct {
	Set    map[string]time.Time
	Remove []string
}

func (that ListingUpdate) IsEmpty() bool {
	return len(that.Set) == 0 && len(that.Remove) == 0
}

// SortListingEvents - orders events by creation time, keeping log order for ties.
func SortListingEvents(events []ListingEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}

// FoldListingEvents - collapses ordered events into a single update. A delete cancels an add
// pending in the same batch instead of being written.
func FoldListingEvents(events []ListingEvent) ListingUpdate {
	set := make(map[string]time.Time)
	remove := make(map[string]struct{})
	order := make([]string, 0)

	for _, event := range events {
		switch event.Type {
		case ListingAdd:
			set[event.GameID] = event.CreatedAt
			delete(remove, event.GameID)
		case ListingDelete:
			if _, pending := set[event.GameID]; pending {
				delete(set, event.GameID)
				continue
			}
			if _, scheduled := remove[event.GameID]; !scheduled {
				remove[event.GameID] = struct{}{}
				order = append(order, event.GameID)
			}
		}
	}

	update := ListingUpdate{Set: set}
	for _, gameID := range order {
		if _, ok := remove[gameID]; ok {
			update.Remove = append(update.Remove, gameID)
		}
	}

	return update
}
