package gamedto

import (
	"github.com/park285/ballknower/internal/game"
)

// TransitionResponse is the result of an accepted action. Alternatives is
// filled when the action ended the game on a failed link.
type TransitionResponse struct {
	Session      *game.Session      `json:"session"`
	Entry        game.HistoryEntry  `json:"entry"`
	Ended        bool               `json:"ended"`
	Failure      *game.LinkFailure  `json:"failure,omitempty"`
	Summary      string             `json:"summary,omitempty"`
	Alternatives *game.Alternatives `json:"alternatives,omitempty"`
}

type LobbyResponse struct {
	Outcome    string `json:"outcome"`
	GameID     string `json:"gameId,omitempty"`
	OpponentID string `json:"opponentId,omitempty"`
	Message    string `json:"message"`
}

type AthleteHit struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	League string `json:"league"`
	Years  string `json:"years,omitempty"`
}

type TeamHit struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	League string `json:"league,omitempty"`
}
