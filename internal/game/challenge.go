package game

import (
	"fmt"
	"strings"

	"github.com/park285/ballknower/internal/attrindex"
)

// Challenge lets the seat on turn contest the opponent's last move instead of
// moving. The contested move must be provable: a named athlete needs at least
// one usable attribute, a named attribute needs at least one carrier.
func (e *Engine) Challenge(s *Session, challenger Seat) (*Transition, error) {
	switch p := s.Phase().(type) {
	case Playing:
		if p.Turn != challenger {
			return nil, ErrNotYourTurn
		}
	case ChallengePendingPhase:
		return nil, ErrChallengePending
	case Waiting:
		return nil, ErrNotStarted
	default:
		return nil, ErrNotActive
	}

	last, ok := s.LastEntry()
	if !ok {
		return nil, ErrNothingToChallenge
	}
	if last.Player != challenger.Other() {
		return nil, ErrOwnMove
	}

	var ctype ChallengeType
	switch {
	case last.Type == EntryPlayer:
		a, ok := e.idx.Athlete(last.Value)
		if !ok {
			return nil, ErrUnknownAthlete
		}
		if !a.Linkable() {
			return nil, fmt.Errorf("%w: player %s has no verifiable attributes (Number, Team, or College) in the data", ErrNotChallengeable, a.Name)
		}
		ctype = ChallengeTypePlayer
	case last.Type.IsMove():
		k, _ := last.Type.Kind()
		if !e.idx.AnyCarrier(k, last.Value) {
			return nil, fmt.Errorf("%w: no player found in data with %s: %s", ErrNotChallengeable, k.Label(), last.Value)
		}
		ctype = ChallengeTypeAttribute
	default:
		return nil, ErrNotChallengeable
	}

	next := s.Clone()
	now := e.Now()
	challenged := challenger.Other()
	entry := HistoryEntry{
		Player:    challenger,
		Type:      EntryChallengeInitiated,
		Value:     fmt.Sprintf("challenged %s's last move (%s: %s)", s.Players.name(challenged), entryLabel(last.Type), last.Value),
		Timestamp: now,
	}
	next.append(entry)
	next.ChallengeStatus = ChallengePending
	next.ChallengeType = ctype
	next.ChallengedPlayer = challenged
	next.Turn = challenged
	next.ChallengeDetails = &ChallengeDetails{
		MoveIndex:    len(s.History) - 1,
		OriginalTurn: challenger,
		MoveType:     last.Type,
		MoveValue:    last.Value,
	}
	next.TurnDeadline = now.Add(e.turnDuration)
	return &Transition{Session: next, Entry: entry}, nil
}

// ResolveChallenge takes the challenged seat's proof. For a contested athlete
// the proof is an attribute of that athlete (Type may be left empty to match
// any array). For a contested attribute the proof is an unused athlete id
// carrying it. Either way the game ends.
func (e *Engine) ResolveChallenge(s *Session, responder Seat, proof Submission) (*Transition, error) {
	var pending ChallengePendingPhase
	switch p := s.Phase().(type) {
	case ChallengePendingPhase:
		if p.Challenged != responder {
			return nil, ErrNotYourTurn
		}
		pending = p
	case Playing:
		return nil, ErrNoChallenge
	case Waiting:
		return nil, ErrNotStarted
	default:
		return nil, ErrNotActive
	}

	value := strings.TrimSpace(proof.Value)
	if value == "" {
		return nil, ErrEmptyValue
	}
	contested := pending.Contested
	challenger := pending.Challenger
	if !challenger.Valid() {
		challenger = responder.Other()
	}

	var (
		passed  bool
		reason  string
		failure *LinkFailure
	)
	switch pending.Type {
	case ChallengeTypePlayer:
		a, ok := e.idx.Athlete(contested.MoveValue)
		if !ok {
			return nil, ErrCorruptState
		}
		kind := proof.Type
		switch {
		case kind == "" || kind == attrindex.KindPlayer:
			kind, passed = a.Match(value)
		case kind.IsAttribute():
			passed = a.Has(kind, value)
		default:
			return nil, ErrInvalidAttributeType
		}
		if passed {
			reason = fmt.Sprintf("%s won challenge (validated %s: %s).", responder, kind, value)
		} else {
			reason = fmt.Sprintf("%s won challenge (opponent failed to validate player %s).", challenger, a.Name)
			failure = &LinkFailure{
				Want:      InputAttribute,
				AthleteID: a.ID,
				Attribute: AttributeRef{Type: proof.Type, Value: value},
				Message:   fmt.Sprintf("'%s' is not an attribute of %s", value, a.Name),
			}
		}

	case ChallengeTypeAttribute:
		k, ok := contested.MoveType.Kind()
		if !ok {
			return nil, ErrCorruptState
		}
		if s.IsUsed(value) {
			return nil, ErrPlayerUsed
		}
		a, ok := e.idx.Athlete(value)
		if !ok {
			return nil, ErrUnknownAthlete
		}
		ref := AttributeRef{Type: k, Value: contested.MoveValue}
		passed = a.Has(k, contested.MoveValue)
		if passed {
			reason = fmt.Sprintf("%s won challenge (validated with player %s).", responder, a.Name)
		} else {
			reason = fmt.Sprintf("%s won challenge (opponent failed to validate attribute %s: %s).", challenger, k, contested.MoveValue)
			failure = &LinkFailure{
				Want:      InputPlayer,
				AthleteID: a.ID,
				Attribute: ref,
				Message:   fmt.Sprintf("%s does not match %s: %s", a.Name, k.Label(), contested.MoveValue),
			}
		}

	default:
		return nil, ErrCorruptState
	}

	winner := challenger
	if passed {
		winner = responder
	}
	next := s.Clone()
	entry := HistoryEntry{Player: winner, Type: EntryEndChallenge, Value: reason, Timestamp: e.Now()}
	next.finish(winner, EndChallenge, entry)
	return &Transition{Session: next, Entry: entry, Ended: true, Failure: failure}, nil
}

func entryLabel(k EntryKind) string {
	if kind, ok := k.Kind(); ok {
		return kind.Label()
	}
	return string(k)
}
