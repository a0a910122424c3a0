package game

import (
	"time"
)

// Session is the authoritative game document. Field names match the stored
// JSON so clients and the store observe the same shape.
type Session struct {
	GameID  string  `json:"gameId"`
	Players Players `json:"players"`
	Status  Status  `json:"status"`

	Turn          Seat      `json:"turn"`
	NextInputType InputType `json:"nextInputType"`

	LastPlayerID               string       `json:"lastPlayerId,omitempty"`
	LastAttribute              AttributeRef `json:"lastAttribute"`
	LastSubmittedAttributeMove AttributeRef `json:"lastSubmittedAttributeMove"`

	UsedPlayerIDs []string       `json:"usedPlayerIds"`
	History       []HistoryEntry `json:"history"`

	ChallengeStatus  ChallengeStatus   `json:"challengeStatus"`
	ChallengeType    ChallengeType     `json:"challengeType"`
	ChallengedPlayer Seat              `json:"challengedPlayer,omitempty"`
	ChallengeDetails *ChallengeDetails `json:"challengeDetails,omitempty"`

	TurnDeadline time.Time `json:"turnDeadline"`
	Winner       Seat      `json:"winner,omitempty"`
	EndReason    EndReason `json:"endReason,omitempty"`

	Matchmade bool      `json:"matchmade"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy; transitions never touch their input.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Players.A != nil {
		a := *s.Players.A
		c.Players.A = &a
	}
	if s.Players.B != nil {
		b := *s.Players.B
		c.Players.B = &b
	}
	c.UsedPlayerIDs = append([]string(nil), s.UsedPlayerIDs...)
	c.History = append([]HistoryEntry(nil), s.History...)
	if s.ChallengeDetails != nil {
		d := *s.ChallengeDetails
		c.ChallengeDetails = &d
	}
	return &c
}

// IsUsed reports whether the athlete was already named this game.
func (s *Session) IsUsed(athleteID string) bool {
	for _, id := range s.UsedPlayerIDs {
		if id == athleteID {
			return true
		}
	}
	return false
}

// MoveCount counts player and attribute submissions.
func (s *Session) MoveCount() int {
	n := 0
	for _, h := range s.History {
		if h.Type.IsMove() {
			n++
		}
	}
	return n
}

// LastEntry returns the most recent history record.
func (s *Session) LastEntry() (HistoryEntry, bool) {
	if len(s.History) == 0 {
		return HistoryEntry{}, false
	}
	return s.History[len(s.History)-1], true
}

// Overdue reports whether the on-turn seat has run out of time.
func (s *Session) Overdue(now time.Time) bool {
	return s.Status == StatusPlaying && !s.TurnDeadline.IsZero() && now.After(s.TurnDeadline)
}

func newSession(id string, host Participant, now time.Time) *Session {
	h := host
	return &Session{
		GameID:          id,
		Players:         Players{A: &h},
		Status:          StatusWaiting,
		Turn:            SeatA,
		NextInputType:   InputPlayer,
		UsedPlayerIDs:   []string{},
		History:         []HistoryEntry{},
		ChallengeStatus: ChallengeNone,
		ChallengeType:   ChallengeTypeNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *Session) start(guest Participant, deadline time.Time) {
	g := guest
	s.Players.B = &g
	s.Status = StatusPlaying
	s.Turn = SeatA
	s.NextInputType = InputPlayer
	s.TurnDeadline = deadline
}

func (s *Session) append(e HistoryEntry) {
	s.History = append(s.History, e)
	s.UpdatedAt = e.Timestamp
}

func (s *Session) finish(winner Seat, reason EndReason, e HistoryEntry) {
	s.Status = StatusFinished
	s.Winner = winner
	s.EndReason = reason
	s.ChallengeStatus = ChallengeNone
	s.ChallengeType = ChallengeTypeNone
	s.ChallengedPlayer = ""
	s.append(e)
}
