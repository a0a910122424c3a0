package game

import (
	"fmt"
)

// Reverse lets the seat on turn prove an alternative answer to the current
// prompt and pass the same prompt back. Only the turn changes. A wrong
// answer is rejected without ending the game.
func (e *Engine) Reverse(s *Session, seat Seat, sub Submission) (*Transition, error) {
	switch p := s.Phase().(type) {
	case Playing:
		if p.Turn != seat {
			return nil, ErrNotYourTurn
		}
	case ChallengePendingPhase:
		return nil, ErrChallengePending
	case Waiting:
		return nil, ErrNotStarted
	default:
		return nil, ErrNotActive
	}
	if len(s.History) == 0 {
		return nil, ErrOpeningMove
	}

	res, err := e.checkLink(s, sub)
	if err != nil {
		return nil, err
	}
	if res.failure != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReverse, res.failure.Message)
	}

	next := s.Clone()
	now := e.Now()
	entry := HistoryEntry{
		Player:    seat,
		Type:      EntryReverseSuccess,
		Value:     fmt.Sprintf("%s reversed with %s: %s", s.Players.name(seat), entryLabel(res.kind), res.value),
		Timestamp: now,
	}
	next.append(entry)
	next.Turn = seat.Other()
	next.TurnDeadline = now.Add(e.turnDuration)
	return &Transition{Session: next, Entry: entry}, nil
}
