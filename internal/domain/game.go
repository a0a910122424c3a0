package domain

import "time"

// GameRecord is the archived form of a finished online game.
type GameRecord struct {
	GameID      string
	PlayerAID   string
	PlayerAName string
	PlayerBID   string
	PlayerBName string
	Winner      string
	WinnerID    string
	EndReason   string
	Matchmade   bool
	Moves       int
	// History is the JSON encoded history of the session.
	History   []byte
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}
