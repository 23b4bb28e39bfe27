package repository

import "context"

const (
	gameKeyPrefix = "game:"

	playerGamesKeyPrefix = "player:"
	playerGamesKeySuffix = ":games"

	EventsKey    = "admin:game-list:events"
	RunMarkerKey = "admin:game-list"
	ListingKey   = "public:game-list"
	DrainLockKey = "admin:game-list:drain"
)

// Notification channels share the names of the documents they announce.
const (
	RunMarkerChannel = RunMarkerKey
	ListingChannel   = ListingKey
)

type publisher interface {
	Publish(ctx context.Context, channel string) error
}

func GameKey(id string) string {
	return gameKeyPrefix + id
}

// GameChannel - notification channel for one session document.
func GameChannel(id string) string {
	return GameKey(id)
}

func playerGamesKey(playerID string) string {
	return playerGamesKeyPrefix + playerID + playerGamesKeySuffix
}
