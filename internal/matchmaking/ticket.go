package matchmaking

import (
	"time"
)

type TicketStatus string

const (
	TicketWaiting TicketStatus = "waiting"
	TicketMatched TicketStatus = "matched"
)

// Ticket is a pending match request, keyed by the requester's identity.
// A ticket moves from waiting to matched at most once; a cancelled or timed
// out ticket is deleted instead.
type Ticket struct {
	UID         string       `json:"uid"`
	DisplayName string       `json:"displayName"`
	Elo         int          `json:"elo"`
	IsTemporary bool         `json:"isTemporary"`
	Status      TicketStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	GameID      string       `json:"gameId,omitempty"`
	MatchedWith string       `json:"matchedWith,omitempty"`
}

func (t *Ticket) waiting() bool { return t != nil && t.Status == TicketWaiting }

// Outcome is how a search ended.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeTimedOut  Outcome = "timed_out"
)

type Result struct {
	Outcome    Outcome `json:"outcome"`
	GameID     string  `json:"gameId,omitempty"`
	OpponentID string  `json:"opponentId,omitempty"`
	Ticks      int     `json:"ticks"`
}

// nearest picks the waiting ticket closest in rating to elo. Ties go to the
// older ticket.
func nearest(elo int, candidates []*Ticket) *Ticket {
	var best *Ticket
	bestDiff := 0
	for _, c := range candidates {
		d := c.Elo - elo
		if d < 0 {
			d = -d
		}
		if best == nil || d < bestDiff || (d == bestDiff && c.CreatedAt.Before(best.CreatedAt)) {
			best, bestDiff = c, d
		}
	}
	return best
}
