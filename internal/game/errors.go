package game

import "errors"

// Input rejections. No state changes when one of these is returned and the
// caller may retry immediately.
var (
	ErrNotActive            = errors.New("game is not active")
	ErrNotStarted           = errors.New("game has not started")
	ErrAlreadyStarted       = errors.New("game already started")
	ErrAlreadySeated        = errors.New("already seated in this game")
	ErrNotSeated            = errors.New("not a participant of this game")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrChallengePending     = errors.New("a challenge is already in progress")
	ErrNoChallenge          = errors.New("no active challenge to resolve")
	ErrEmptyValue           = errors.New("missing value")
	ErrWrongInput           = errors.New("unexpected input type")
	ErrPlayerUsed           = errors.New("this player has already been used in this game")
	ErrUnknownAthlete       = errors.New("invalid player selected")
	ErrInvalidAttributeType = errors.New("invalid attribute type selected")
	ErrRepeatAttribute      = errors.New("attribute cannot be submitted again immediately")
	ErrNothingToChallenge   = errors.New("no moves have been made yet to challenge")
	ErrOwnMove              = errors.New("cannot challenge your own move")
	ErrNotChallengeable     = errors.New("this move cannot be challenged")
	ErrOpeningMove          = errors.New("cannot reverse the opening move")
	ErrInvalidReverse       = errors.New("reverse answer is not valid")
	ErrDeadlineNotPassed    = errors.New("turn deadline has not passed")
	ErrCorruptState         = errors.New("game state is missing its link context")
)
