package httpapi

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/pkg/gamedto"
)

func (s *Server) createGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	who, err := requireIdentity(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	sess, err := s.games.CreateFriendly(r.Context(), who)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	sess, err := s.games.Load(r.Context(), p.ByName("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) joinGame(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	who, err := requireIdentity(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	sess, err := s.games.Join(r.Context(), p.ByName("id"), who)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// action is a seat-scoped transition taking an optional submission body.
type action func(ctx context.Context, gameID, userID string, sub game.Submission) (*game.Transition, error)

func (s *Server) transition(withBody bool, fn action) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		who, err := requireIdentity(r)
		if err != nil {
			s.fail(w, err)
			return
		}
		var sub game.Submission
		if withBody {
			var req gamedto.MoveRequest
			if err := decode(w, r, &req); err != nil {
				s.fail(w, err)
				return
			}
			if sub, err = submissionOf(req); err != nil {
				s.fail(w, err)
				return
			}
		}
		tr, err := fn(r.Context(), p.ByName("id"), who.ID, sub)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.transitionResponse(tr))
	}
}

func (s *Server) transitionResponse(tr *game.Transition) gamedto.TransitionResponse {
	out := gamedto.TransitionResponse{Session: tr.Session, Entry: tr.Entry, Ended: tr.Ended, Failure: tr.Failure}
	if !tr.Ended {
		return out
	}
	sess := tr.Session
	names := map[string]string{
		"Winner": seatName(sess, sess.Winner),
		"Loser":  seatName(sess, sess.Winner.Other()),
	}
	out.Summary = s.msgs.Text("end."+string(sess.EndReason), names, string(sess.EndReason))
	if tr.Failure != nil || sess.EndReason == game.EndChallenge {
		alts := s.games.Engine().FailureAlternatives(sess, tr.Failure, altLimit)
		out.Alternatives = &alts
	}
	return out
}

func seatName(s *game.Session, seat game.Seat) string {
	if p := s.Players.Seat(seat); p != nil && p.Name != "" {
		return p.Name
	}
	return "Player " + string(seat)
}

func (s *Server) submitMove(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	s.transition(true, s.games.Submit)(w, r, p)
}

func (s *Server) challenge(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	s.transition(false, func(ctx context.Context, gameID, userID string, _ game.Submission) (*game.Transition, error) {
		return s.games.Challenge(ctx, gameID, userID)
	})(w, r, p)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	s.transition(true, s.games.Respond)(w, r, p)
}

func (s *Server) reverse(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	s.transition(true, s.games.Reverse)(w, r, p)
}

func (s *Server) giveUp(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	s.transition(false, func(ctx context.Context, gameID, userID string, _ game.Submission) (*game.Transition, error) {
		return s.games.GiveUp(ctx, gameID, userID)
	})(w, r, p)
}

func (s *Server) timeout(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	s.transition(false, func(ctx context.Context, gameID, userID string, _ game.Submission) (*game.Transition, error) {
		return s.games.Timeout(ctx, gameID, userID)
	})(w, r, p)
}

func (s *Server) alternatives(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	alts, err := s.games.Alternatives(r.Context(), p.ByName("id"), limitParam(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alts)
}
