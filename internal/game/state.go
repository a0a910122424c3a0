package game

// Phase is the explicit state of a session, derived from the stored flat
// document. Every Engine transition switches over it.
type Phase interface {
	phase()
}

// Waiting is a friendly game whose guest seat is still empty.
type Waiting struct {
	Host *Participant
}

// LinkContext is what the next submission must connect to.
type LinkContext struct {
	PlayerID  string
	Attribute AttributeRef
}

type Playing struct {
	Turn Seat
	Next InputType
	Link LinkContext
}

type ChallengePendingPhase struct {
	Challenger Seat
	Challenged Seat
	Type       ChallengeType
	Contested  ChallengeDetails
}

type Finished struct {
	Winner Seat
	Reason EndReason
}

func (Waiting) phase()               {}
func (Playing) phase()               {}
func (ChallengePendingPhase) phase() {}
func (Finished) phase()              {}

// Phase derives the current state. A pending challenge with missing details
// is reported as Playing so that the corrupt snapshot can still be given up.
func (s *Session) Phase() Phase {
	switch s.Status {
	case StatusWaiting:
		return Waiting{Host: s.Players.A}
	case StatusFinished:
		return Finished{Winner: s.Winner, Reason: s.EndReason}
	}
	if s.ChallengeStatus == ChallengePending && s.ChallengeDetails != nil {
		return ChallengePendingPhase{
			Challenger: s.ChallengeDetails.OriginalTurn,
			Challenged: s.ChallengedPlayer,
			Type:       s.ChallengeType,
			Contested:  *s.ChallengeDetails,
		}
	}
	return Playing{
		Turn: s.Turn,
		Next: s.NextInputType,
		Link: LinkContext{PlayerID: s.LastPlayerID, Attribute: s.LastSubmittedAttributeMove},
	}
}
