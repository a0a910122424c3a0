package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/park285/ballknower/internal/daily"
	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/matchmaking"
	"github.com/park285/ballknower/internal/online"
	"github.com/park285/ballknower/pkg/gamedto"
)

type errorKind struct {
	err       error
	code      string
	status    int
	retryable bool
}

var errorKinds = []errorKind{
	{err: online.ErrGameNotFound, code: "not_found", status: http.StatusNotFound},
	{err: docstore.ErrNotFound, code: "not_found", status: http.StatusNotFound},
	{err: game.ErrNotActive, code: "not_active", status: http.StatusConflict},
	{err: game.ErrNotStarted, code: "not_started", status: http.StatusConflict},
	{err: game.ErrAlreadyStarted, code: "already_started", status: http.StatusConflict},
	{err: game.ErrAlreadySeated, code: "already_seated", status: http.StatusConflict},
	{err: game.ErrNotSeated, code: "not_seated", status: http.StatusForbidden},
	{err: game.ErrNotYourTurn, code: "not_your_turn", status: http.StatusConflict},
	{err: game.ErrChallengePending, code: "challenge_pending", status: http.StatusConflict},
	{err: game.ErrNoChallenge, code: "no_challenge", status: http.StatusConflict},
	{err: game.ErrEmptyValue, code: "empty_value", status: http.StatusBadRequest},
	{err: game.ErrWrongInput, code: "wrong_input", status: http.StatusBadRequest},
	{err: game.ErrPlayerUsed, code: "player_used", status: http.StatusUnprocessableEntity},
	{err: game.ErrUnknownAthlete, code: "unknown_athlete", status: http.StatusUnprocessableEntity},
	{err: game.ErrInvalidAttributeType, code: "invalid_attribute_type", status: http.StatusBadRequest},
	{err: game.ErrRepeatAttribute, code: "repeat_attribute", status: http.StatusUnprocessableEntity},
	{err: game.ErrNothingToChallenge, code: "nothing_to_challenge", status: http.StatusConflict},
	{err: game.ErrOwnMove, code: "own_move", status: http.StatusConflict},
	{err: game.ErrNotChallengeable, code: "not_challengeable", status: http.StatusUnprocessableEntity},
	{err: game.ErrOpeningMove, code: "opening_move", status: http.StatusConflict},
	{err: game.ErrInvalidReverse, code: "invalid_reverse", status: http.StatusUnprocessableEntity},
	{err: game.ErrDeadlineNotPassed, code: "deadline_not_passed", status: http.StatusConflict},
	{err: docstore.ErrConflict, code: "conflict", status: http.StatusConflict, retryable: true},
	{err: matchmaking.ErrNoIdentity, code: "no_identity", status: http.StatusUnauthorized},
	{err: matchmaking.ErrAlreadyMatched, code: "already_matched", status: http.StatusConflict},
	{err: matchmaking.ErrNoTicket, code: "no_ticket", status: http.StatusNotFound},
	{err: daily.ErrNoPuzzle, code: "no_puzzle", status: http.StatusNotFound},
	{err: daily.ErrBadDateKey, code: "bad_date", status: http.StatusBadRequest},
	{err: daily.ErrInvalidLink, code: "invalid_link", status: http.StatusUnprocessableEntity},
	{err: daily.ErrAlreadySolved, code: "already_solved", status: http.StatusUnprocessableEntity},
	{err: daily.ErrEmptyAttempt, code: "empty_attempt", status: http.StatusBadRequest},
	{err: errBadRequest, code: "bad_request", status: http.StatusBadRequest},
	{err: context.DeadlineExceeded, code: "internal", status: http.StatusGatewayTimeout, retryable: true},
}

var errBadRequest = errors.New("bad request")

// domainError maps err onto the wire error and its HTTP status. Unknown
// errors are infrastructure failures and are retryable.
func (s *Server) domainError(err error) (int, gamedto.DomainError) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.err) {
			continue
		}
		msg := s.msgs.Text("errors."+k.code, map[string]string{"Detail": err.Error()}, err.Error())
		return k.status, gamedto.DomainError{Code: k.code, Message: msg, Retryable: k.retryable}
	}
	return http.StatusInternalServerError, gamedto.DomainError{
		Code:      "internal",
		Message:   s.msgs.Text("errors.internal", nil, "internal error"),
		Retryable: true,
	}
}
