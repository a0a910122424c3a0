package game

import (
	"github.com/park285/ballknower/internal/attrindex"
)

// Alternatives lists answers that would have satisfied a prompt. It is a
// read-side projection and is never stored.
type Alternatives struct {
	Want       InputType      `json:"want"`
	AthleteID  string         `json:"athleteId,omitempty"`
	Attribute  AttributeRef   `json:"attribute"`
	Athletes   []AthleteRef   `json:"athletes,omitempty"`
	Attributes []AttributeRef `json:"attributes,omitempty"`
}

type AthleteRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Alternatives projects the valid answers for the session's prompt. For a
// live game that is the current prompt; for a game lost on a wrong link it is
// the prompt that was failed; for a challenge it is the contested move.
func (e *Engine) Alternatives(s *Session, limit int) Alternatives {
	if s.Status == StatusFinished && s.EndReason == EndChallenge && s.ChallengeDetails != nil {
		d := s.ChallengeDetails
		if d.MoveType == EntryPlayer {
			return e.attributesOf(d.MoveValue, AttributeRef{})
		}
		if k, ok := d.MoveType.Kind(); ok {
			return e.carriersOf(s, AttributeRef{Type: k, Value: d.MoveValue}, limit)
		}
		return Alternatives{}
	}
	switch s.NextInputType {
	case InputPlayer:
		if s.LastSubmittedAttributeMove.IsZero() {
			return Alternatives{Want: InputPlayer}
		}
		return e.carriersOf(s, s.LastSubmittedAttributeMove, limit)
	case InputAttribute:
		return e.attributesOf(s.LastPlayerID, s.LastSubmittedAttributeMove)
	}
	return Alternatives{}
}

// FailureAlternatives projects the answers for a failed link.
func (e *Engine) FailureAlternatives(s *Session, f *LinkFailure, limit int) Alternatives {
	if f == nil {
		return e.Alternatives(s, limit)
	}
	if f.Want == InputPlayer {
		return e.carriersOf(s, f.Attribute, limit)
	}
	return e.attributesOf(f.AthleteID, AttributeRef{})
}

func (e *Engine) carriersOf(s *Session, ref AttributeRef, limit int) Alternatives {
	out := Alternatives{Want: InputPlayer, Attribute: ref}
	for _, a := range e.idx.Carriers(ref.Type, ref.Value) {
		if s.IsUsed(a.ID) {
			continue
		}
		out.Athletes = append(out.Athletes, AthleteRef{ID: a.ID, Name: a.Name})
		if limit > 0 && len(out.Athletes) >= limit {
			break
		}
	}
	return out
}

func (e *Engine) attributesOf(athleteID string, exclude AttributeRef) Alternatives {
	out := Alternatives{Want: InputAttribute, AthleteID: athleteID}
	a, ok := e.idx.Athlete(athleteID)
	if !ok {
		return out
	}
	for _, k := range attrindex.AttributeKinds {
		for _, v := range a.Values(k) {
			ref := AttributeRef{Type: k, Value: v}
			if !attrindex.Usable(v) || ref.Same(exclude) {
				continue
			}
			out.Attributes = append(out.Attributes, ref)
		}
	}
	return out
}
