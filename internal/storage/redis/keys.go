package redis

import (
	"fmt"

	"github.com/mcoot/puzzlegame/internal/model"
)

// Key prefix for all puzzle data
const keyPrefix = "puzzle"

// sessionKey returns the Redis key for a PuzzleSession
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// activeSessionKey returns the Redis key for the (owner, puzzle) -> active session id index.
// The owner is length-prefixed so pairs containing ':' never share a key.
func activeSessionKey(owner model.OwnerID, ref model.PuzzleRef) string {
	return fmt.Sprintf("%s:idx:active:%d:%s:%s", keyPrefix, len(owner), owner, ref)
}

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}
