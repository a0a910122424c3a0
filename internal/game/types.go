package game

import (
	"strings"
	"time"

	"github.com/park285/ballknower/internal/attrindex"
)

// Seat is one of the two fixed player slots.
type Seat string

const (
	SeatA Seat = "A"
	SeatB Seat = "B"
)

// Other returns the opposing seat. It is only meaningful for A and B.
func (s Seat) Other() Seat {
	if s == SeatA {
		return SeatB
	}
	return SeatA
}

func (s Seat) Valid() bool { return s == SeatA || s == SeatB }

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// InputType is what the seat on turn must submit next.
type InputType string

const (
	InputPlayer    InputType = "player"
	InputAttribute InputType = "attribute"
)

func (t InputType) flip() InputType {
	if t == InputPlayer {
		return InputAttribute
	}
	return InputPlayer
}

type ChallengeStatus string

const (
	ChallengeNone    ChallengeStatus = "none"
	ChallengePending ChallengeStatus = "pending"
)

// ChallengeType is the kind of move under challenge.
type ChallengeType string

const (
	ChallengeTypeNone      ChallengeType = "none"
	ChallengeTypePlayer    ChallengeType = "player"
	ChallengeTypeAttribute ChallengeType = "attribute"
)

// EntryKind tags a history record.
type EntryKind string

const (
	EntryPlayer             EntryKind = "player"
	EntryNumber             EntryKind = "number"
	EntryTeam               EntryKind = "team"
	EntryCollege            EntryKind = "college"
	EntryChallengeInitiated EntryKind = "challenge_initiated"
	EntryReverseSuccess     EntryKind = "reverse_success"
	EntryEndIncorrect       EntryKind = "game_end_incorrect"
	EntryEndChallenge       EntryKind = "game_end_challenge"
	EntryEndGiveUp          EntryKind = "game_end_give_up"
	EntryEndTimeout         EntryKind = "game_end_timeout"
	EntryEndTurnLimit       EntryKind = "game_end_turn_limit"
)

// IsMove reports whether the record is a player or attribute submission.
// Only these count toward the turn limit.
func (k EntryKind) IsMove() bool {
	switch k {
	case EntryPlayer, EntryNumber, EntryTeam, EntryCollege:
		return true
	default:
		return false
	}
}

// Kind maps a move record to the attribute index kind it named.
func (k EntryKind) Kind() (attrindex.Kind, bool) {
	if !k.IsMove() {
		return "", false
	}
	return attrindex.Kind(k), true
}

// EndReason is why a finished session ended.
type EndReason string

const (
	EndIncorrect EndReason = "incorrect"
	EndChallenge EndReason = "challenge"
	EndGiveUp    EndReason = "give_up"
	EndTimeout   EndReason = "timeout"
	EndTurnLimit EndReason = "turn_limit"
)

func (r EndReason) entryKind() EntryKind { return EntryKind("game_end_" + string(r)) }

// AttributeRef is a typed attribute value such as {team, LAL}.
type AttributeRef struct {
	Type  attrindex.Kind `json:"type"`
	Value string         `json:"value"`
}

func (a AttributeRef) IsZero() bool { return a.Type == "" }

// Same compares type exactly and value ignoring case and surrounding space.
func (a AttributeRef) Same(b AttributeRef) bool {
	return a.Type == b.Type && strings.EqualFold(strings.TrimSpace(a.Value), strings.TrimSpace(b.Value))
}

// Participant is the identity occupying a seat.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsTemporary bool   `json:"isTemporary"`
	Elo         int    `json:"elo,omitempty"`
}

// Players holds both seats. B is nil while the session waits for a guest.
type Players struct {
	A *Participant `json:"A"`
	B *Participant `json:"B"`
}

func (p Players) Seat(s Seat) *Participant {
	switch s {
	case SeatA:
		return p.A
	case SeatB:
		return p.B
	default:
		return nil
	}
}

// SeatOf returns the seat held by the identity.
func (p Players) SeatOf(userID string) (Seat, bool) {
	if userID == "" {
		return "", false
	}
	if p.A != nil && p.A.ID == userID {
		return SeatA, true
	}
	if p.B != nil && p.B.ID == userID {
		return SeatB, true
	}
	return "", false
}

func (p Players) name(s Seat) string {
	if pp := p.Seat(s); pp != nil && pp.Name != "" {
		return pp.Name
	}
	return "Player " + string(s)
}

// HistoryEntry is one append-only record.
type HistoryEntry struct {
	Player    Seat      `json:"player"`
	Type      EntryKind `json:"type"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// ChallengeDetails snapshots the contested move. It is kept after the
// challenge resolves so the end screen can project alternatives.
type ChallengeDetails struct {
	MoveIndex    int       `json:"moveIndex"`
	OriginalTurn Seat      `json:"originalTurn"`
	MoveType     EntryKind `json:"moveType"`
	MoveValue    string    `json:"moveValue"`
}

// Submission is a proposed value. Type is the attribute kind for attribute
// moves; it may be empty or "player" when an athlete id is expected.
type Submission struct {
	Value string         `json:"value"`
	Type  attrindex.Kind `json:"type,omitempty"`
}
