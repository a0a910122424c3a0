package game

import (
	"fmt"
	"strings"

	"github.com/park285/ballknower/internal/attrindex"
)

// Entity is a typed endpoint of a solo chain: an athlete id or an attribute
// value.
type Entity struct {
	Type attrindex.Kind `json:"type"`
	ID   string         `json:"id"`
}

// Matches reports whether a move record names this entity.
func (en Entity) Matches(e HistoryEntry) bool {
	if string(e.Type) != string(en.Type) {
		return false
	}
	if en.Type == attrindex.KindPlayer {
		return e.Value == en.ID
	}
	return strings.EqualFold(strings.TrimSpace(e.Value), strings.TrimSpace(en.ID))
}

// NewSolo starts a single-seat chain from start. A start athlete counts as
// already used and the first submission must be one of its attributes; a
// start attribute must be followed by an athlete carrying it.
func (e *Engine) NewSolo(id string, who Participant, start Entity) (*Session, error) {
	now := e.Now()
	s := newSession(id, who, now)
	s.Status = StatusPlaying
	switch {
	case start.Type == attrindex.KindPlayer:
		a, ok := e.idx.Athlete(start.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAthlete, start.ID)
		}
		s.NextInputType = InputAttribute
		s.LastPlayerID = a.ID
		s.UsedPlayerIDs = append(s.UsedPlayerIDs, a.ID)
	case start.Type.IsAttribute():
		ref := AttributeRef{Type: start.Type, Value: strings.TrimSpace(start.ID)}
		if ref.Value == "" {
			return nil, ErrEmptyValue
		}
		s.NextInputType = InputPlayer
		s.LastAttribute = ref
		s.LastSubmittedAttributeMove = ref
	default:
		return nil, ErrInvalidAttributeType
	}
	return s, nil
}
