package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/ballknower/internal/attrindex"
)

const (
	DefaultTurnLimit    = 30
	DefaultTurnDuration = 60 * time.Second
)

// Lookup is the read side of the attribute index the rules need.
type Lookup interface {
	Athlete(id string) (*attrindex.Athlete, bool)
	AnyCarrier(k attrindex.Kind, value string) bool
	Carriers(k attrindex.Kind, value string) []*attrindex.Athlete
}

// Engine computes transitions. It holds no session state and is safe for
// concurrent use; every method returns a fresh session and never mutates
// its input.
type Engine struct {
	idx          Lookup
	turnLimit    int
	turnDuration time.Duration
	now          func() time.Time
}

type Option func(*Engine)

func WithTurnLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.turnLimit = n
		}
	}
}

func WithTurnDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.turnDuration = d
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(idx Lookup, opts ...Option) *Engine {
	e := &Engine{
		idx:          idx,
		turnLimit:    DefaultTurnLimit,
		turnDuration: DefaultTurnDuration,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) TurnDuration() time.Duration { return e.turnDuration }
func (e *Engine) TurnLimit() int              { return e.turnLimit }
func (e *Engine) Now() time.Time              { return e.now().UTC() }

// NewFriendly opens a session that waits for a guest in seat B.
func (e *Engine) NewFriendly(id string, host Participant) *Session {
	return newSession(id, host, e.Now())
}

// NewMatched creates a session that starts immediately with both seats filled.
func (e *Engine) NewMatched(id string, a, b Participant) *Session {
	now := e.Now()
	s := newSession(id, a, now)
	s.Matchmade = true
	s.start(b, now.Add(e.turnDuration))
	return s
}

// Join seats the guest in B and starts play.
func (e *Engine) Join(s *Session, guest Participant) (*Session, error) {
	switch s.Phase().(type) {
	case Waiting:
	default:
		return nil, ErrAlreadyStarted
	}
	if strings.TrimSpace(guest.ID) == "" {
		return nil, ErrNotSeated
	}
	if s.Players.A != nil && s.Players.A.ID == guest.ID {
		return nil, ErrAlreadySeated
	}
	next := s.Clone()
	now := e.Now()
	next.start(guest, now.Add(e.turnDuration))
	next.UpdatedAt = now
	return next, nil
}

// Transition is the result of an accepted submission.
type Transition struct {
	Session *Session
	Entry   HistoryEntry
	Ended   bool
	// Failure is set when the move ended the game because its link was wrong,
	// or when a challenge proof failed.
	Failure *LinkFailure
}

// LinkFailure describes a link that did not hold: the athlete does not carry
// the attribute.
type LinkFailure struct {
	// Want is what the prompt asked for when the link was checked.
	Want      InputType    `json:"want"`
	AthleteID string       `json:"athleteId"`
	Attribute AttributeRef `json:"attribute"`
	Message   string       `json:"message"`
}

// linkResult is the outcome of a link check that passed its input rules.
type linkResult struct {
	kind    EntryKind
	value   string
	athlete *attrindex.Athlete
	failure *LinkFailure
}

// checkLink applies the move rules to a submission against the current
// prompt. Input problems are errors; a wrong link is a failure result.
func (e *Engine) checkLink(s *Session, sub Submission) (linkResult, error) {
	value := strings.TrimSpace(sub.Value)
	switch s.NextInputType {
	case InputPlayer:
		if sub.Type != "" && sub.Type != attrindex.KindPlayer {
			return linkResult{}, fmt.Errorf("%w: expected player", ErrWrongInput)
		}
		if value == "" {
			return linkResult{}, ErrEmptyValue
		}
		if s.IsUsed(value) {
			return linkResult{}, ErrPlayerUsed
		}
		a, ok := e.idx.Athlete(value)
		if !ok {
			return linkResult{}, ErrUnknownAthlete
		}
		res := linkResult{kind: EntryPlayer, value: a.ID, athlete: a}
		link := s.LastSubmittedAttributeMove
		switch {
		case !link.IsZero():
			if !a.Has(link.Type, link.Value) {
				res.failure = &LinkFailure{
					Want:      InputPlayer,
					AthleteID: a.ID,
					Attribute: link,
					Message:   fmt.Sprintf("%s does not match %s: %s", a.Name, link.Type.Label(), link.Value),
				}
			}
		case len(s.History) == 0:
		default:
			return linkResult{}, ErrCorruptState
		}
		return res, nil

	case InputAttribute:
		if !sub.Type.IsAttribute() {
			return linkResult{}, ErrInvalidAttributeType
		}
		if value == "" {
			return linkResult{}, fmt.Errorf("%w for attribute: %s", ErrEmptyValue, sub.Type.Label())
		}
		ref := AttributeRef{Type: sub.Type, Value: value}
		if ref.Same(s.LastSubmittedAttributeMove) {
			return linkResult{}, ErrRepeatAttribute
		}
		last, ok := e.idx.Athlete(s.LastPlayerID)
		if !ok {
			return linkResult{}, ErrCorruptState
		}
		res := linkResult{kind: EntryKind(sub.Type), value: value, athlete: last}
		if !last.Has(sub.Type, value) {
			res.failure = &LinkFailure{
				Want:      InputAttribute,
				AthleteID: last.ID,
				Attribute: ref,
				Message:   fmt.Sprintf("%s '%s' is incorrect for %s.", sub.Type.Label(), value, last.Name),
			}
		}
		return res, nil
	}
	return linkResult{}, ErrCorruptState
}

// Submit validates and applies an ordinary move. A wrong link is not an
// error: the returned transition ends the game with the opponent winning.
func (e *Engine) Submit(s *Session, seat Seat, sub Submission) (*Transition, error) {
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

	res, err := e.checkLink(s, sub)
	if err != nil {
		return nil, err
	}

	next := s.Clone()
	now := e.Now()
	if res.failure != nil {
		entry := HistoryEntry{
			Player:    seat,
			Type:      EntryEndIncorrect,
			Value:     fmt.Sprintf("%s lost (Incorrect: %s)", s.Players.name(seat), res.failure.Message),
			Timestamp: now,
		}
		next.finish(seat.Other(), EndIncorrect, entry)
		return &Transition{Session: next, Entry: entry, Ended: true, Failure: res.failure}, nil
	}

	entry := HistoryEntry{Player: seat, Type: res.kind, Value: res.value, Timestamp: now}
	next.append(entry)
	next.Turn = seat.Other()
	next.NextInputType = s.NextInputType.flip()
	if res.kind == EntryPlayer {
		next.LastPlayerID = res.value
		next.UsedPlayerIDs = append(next.UsedPlayerIDs, res.value)
	} else {
		ref := AttributeRef{Type: attrindex.Kind(res.kind), Value: res.value}
		next.LastAttribute = ref
		next.LastSubmittedAttributeMove = ref
	}
	next.TurnDeadline = now.Add(e.turnDuration)

	t := &Transition{Session: next, Entry: entry}
	if next.MoveCount() >= e.turnLimit {
		next.finish(seat.Other(), EndTurnLimit, HistoryEntry{
			Player:    seat,
			Type:      EntryEndTurnLimit,
			Value:     "Game ended due to maximum turns reached",
			Timestamp: now,
		})
		t.Ended = true
	}
	return t, nil
}
