package game

import (
	"fmt"
	"time"
)

// GiveUp ends the game in the opponent's favour. Either seat may give up at
// any point of play, including while a challenge is pending.
func (e *Engine) GiveUp(s *Session, seat Seat) (*Transition, error) {
	if err := requireLive(s); err != nil {
		return nil, err
	}
	if !seat.Valid() {
		return nil, ErrNotSeated
	}
	return e.end(s, seat, EndGiveUp, fmt.Sprintf("%s gave up", s.Players.name(seat))), nil
}

// Timeout is the client-triggered expiry. Only the seat on turn may write it
// and only once its deadline has passed.
func (e *Engine) Timeout(s *Session, seat Seat) (*Transition, error) {
	if err := requireLive(s); err != nil {
		return nil, err
	}
	if s.Turn != seat {
		return nil, ErrNotYourTurn
	}
	return e.Expire(s, e.Now())
}

// Expire is the server-side expiry used by the sweeper: the seat on turn
// loses once now passes the deadline.
func (e *Engine) Expire(s *Session, now time.Time) (*Transition, error) {
	if err := requireLive(s); err != nil {
		return nil, err
	}
	if !s.Overdue(now) {
		return nil, ErrDeadlineNotPassed
	}
	loser := s.Turn
	return e.end(s, loser, EndTimeout, fmt.Sprintf("%s ran out of time", s.Players.name(loser))), nil
}

func requireLive(s *Session) error {
	switch s.Phase().(type) {
	case Playing, ChallengePendingPhase:
		return nil
	case Waiting:
		return ErrNotStarted
	default:
		return ErrNotActive
	}
}

func (e *Engine) end(s *Session, loser Seat, reason EndReason, text string) *Transition {
	next := s.Clone()
	entry := HistoryEntry{Player: loser, Type: reason.entryKind(), Value: text, Timestamp: e.Now()}
	next.finish(loser.Other(), reason, entry)
	return &Transition{Session: next, Entry: entry, Ended: true}
}
