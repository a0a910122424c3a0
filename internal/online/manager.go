// Package online runs two-seat games on the shared document store. Every
// transition is computed by game.Engine against the current snapshot and
// committed with a compare-and-swap, so a stale writer never clobbers a
// newer move.
package online

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/obslog"
	"github.com/park285/ballknower/internal/profile"
)

// AnswersRank counts how often each athlete was accepted as an answer.
const AnswersRank = "answers"

var ErrGameNotFound = errors.New("game not found")

type Manager struct {
	store    *docstore.Store
	engine   *game.Engine
	index    *attrindex.Index
	profiles *profile.Service
	archive  Archive
	newID    func() string
}

type Option func(*Manager)

// WithProfiles enables rating settlement of finished games.
func WithProfiles(p *profile.Service) Option { return func(m *Manager) { m.profiles = p } }

func WithArchive(a Archive) Option { return func(m *Manager) { m.archive = a } }

// WithIndex resolves athlete names for answer statistics.
func WithIndex(idx *attrindex.Index) Option { return func(m *Manager) { m.index = idx } }

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

func NewManager(store *docstore.Store, engine *game.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		engine: engine,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Engine() *game.Engine { return m.engine }

// Participant turns an identity into a seat occupant carrying its rating.
func (m *Manager) Participant(ctx context.Context, who profile.Identity) game.Participant {
	p := game.Participant{
		ID:          strings.TrimSpace(who.ID),
		Name:        strings.TrimSpace(who.Name),
		IsTemporary: !who.Persistent,
	}
	if m.profiles != nil {
		p.Elo = m.profiles.Rating(ctx, who)
	}
	return p
}

// CreateFriendly opens a game for host and waits for a guest.
func (m *Manager) CreateFriendly(ctx context.Context, host profile.Identity) (*game.Session, error) {
	if strings.TrimSpace(host.ID) == "" {
		return nil, fmt.Errorf("%w: missing identity", game.ErrNotSeated)
	}
	s := m.engine.NewFriendly(m.newID(), m.Participant(ctx, host))
	if err := m.store.Create(ctx, docstore.Games, s.GameID, s); err != nil {
		return nil, err
	}
	obslog.L().Info("game_create",
		zap.String("game_id", s.GameID),
		zap.String("host_id", host.ID),
	)
	return s, nil
}

// Join seats guest in B. Joining a game one already sits in returns it.
func (m *Manager) Join(ctx context.Context, gameID string, guest profile.Identity) (*game.Session, error) {
	seated := m.Participant(ctx, guest)
	var rejoined bool
	s, err := docstore.Update(ctx, m.store, docstore.Games, gameID, func(cur *game.Session) (*game.Session, error) {
		if _, ok := cur.Players.SeatOf(seated.ID); ok && cur.Status != game.StatusWaiting {
			rejoined = true
			return nil, errRejoin
		}
		return m.engine.Join(cur, seated)
	})
	if rejoined {
		return m.Load(ctx, gameID)
	}
	if err != nil {
		return nil, mapStoreErr(err)
	}
	obslog.L().Info("game_join",
		zap.String("game_id", s.GameID),
		zap.String("guest_id", seated.ID),
	)
	return s, nil
}

var errRejoin = errors.New("rejoin")

func (m *Manager) Load(ctx context.Context, gameID string) (*game.Session, error) {
	var s game.Session
	if err := m.store.Get(ctx, docstore.Games, gameID, &s); err != nil {
		return nil, mapStoreErr(err)
	}
	return &s, nil
}

// Submit plays an ordinary move for userID.
func (m *Manager) Submit(ctx context.Context, gameID, userID string, sub game.Submission) (*game.Transition, error) {
	return m.apply(ctx, "game_move", gameID, userID, func(s *game.Session, seat game.Seat) (*game.Transition, error) {
		return m.engine.Submit(s, seat, sub)
	})
}

// Challenge contests the opponent's last move.
func (m *Manager) Challenge(ctx context.Context, gameID, userID string) (*game.Transition, error) {
	return m.apply(ctx, "game_challenge", gameID, userID, func(s *game.Session, seat game.Seat) (*game.Transition, error) {
		return m.engine.Challenge(s, seat)
	})
}

// Respond answers a pending challenge with a proof.
func (m *Manager) Respond(ctx context.Context, gameID, userID string, proof game.Submission) (*game.Transition, error) {
	return m.apply(ctx, "game_challenge_resolved", gameID, userID, func(s *game.Session, seat game.Seat) (*game.Transition, error) {
		return m.engine.ResolveChallenge(s, seat, proof)
	})
}

func (m *Manager) Reverse(ctx context.Context, gameID, userID string, sub game.Submission) (*game.Transition, error) {
	return m.apply(ctx, "game_reverse", gameID, userID, func(s *game.Session, seat game.Seat) (*game.Transition, error) {
		return m.engine.Reverse(s, seat, sub)
	})
}

func (m *Manager) GiveUp(ctx context.Context, gameID, userID string) (*game.Transition, error) {
	return m.apply(ctx, "game_give_up", gameID, userID, func(s *game.Session, seat game.Seat) (*game.Transition, error) {
		return m.engine.GiveUp(s, seat)
	})
}

func (m *Manager) Timeout(ctx context.Context, gameID, userID string) (*game.Transition, error) {
	return m.apply(ctx, "game_timeout", gameID, userID, func(s *game.Session, seat game.Seat) (*game.Transition, error) {
		return m.engine.Timeout(s, seat)
	})
}

func (m *Manager) apply(ctx context.Context, event, gameID, userID string, fn func(*game.Session, game.Seat) (*game.Transition, error)) (*game.Transition, error) {
	var tr *game.Transition
	_, err := docstore.Update(ctx, m.store, docstore.Games, gameID, func(cur *game.Session) (*game.Session, error) {
		seat, ok := cur.Players.SeatOf(userID)
		if !ok {
			return nil, game.ErrNotSeated
		}
		t, err := fn(cur, seat)
		if err != nil {
			return nil, err
		}
		tr = t
		return t.Session, nil
	})
	if err != nil {
		err = mapStoreErr(err)
		obslog.L().Debug(event+"_rejected",
			zap.String("game_id", gameID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	m.committed(ctx, event, tr)
	return tr, nil
}

// committed runs the side effects of a transition that is already stored.
// Their failures are logged and never undo the move.
func (m *Manager) committed(ctx context.Context, event string, tr *game.Transition) {
	s := tr.Session
	if tr.Failure != nil && tr.Entry.Type == game.EntryEndIncorrect {
		event = "game_hard_failure"
	}
	obslog.L().Info(event,
		zap.String("game_id", s.GameID),
		zap.String("seat", string(tr.Entry.Player)),
		zap.String("entry", string(tr.Entry.Type)),
		zap.String("value", tr.Entry.Value),
		zap.Bool("ended", tr.Ended),
	)
	if tr.Entry.Type == game.EntryPlayer {
		if err := m.store.IncrRank(ctx, AnswersRank, tr.Entry.Value, 1); err != nil {
			obslog.L().Warn("game_answer_count_failed", zap.String("athlete_id", tr.Entry.Value), zap.Error(err))
		}
	}
	if tr.Ended {
		m.finished(ctx, s)
	}
}

func (m *Manager) finished(ctx context.Context, s *game.Session) {
	winner := s.Players.Seat(s.Winner)
	loser := s.Players.Seat(s.Winner.Other())
	if m.profiles != nil && winner != nil && loser != nil {
		_, _ = m.profiles.Settle(ctx, identityOf(winner), identityOf(loser))
	}
	if m.archive != nil {
		if err := m.archive.SaveResult(ctx, recordFromSession(s)); err != nil {
			obslog.L().Warn("game_archive_failed", zap.String("game_id", s.GameID), zap.Error(err))
			return
		}
		obslog.L().Info("game_archive", zap.String("game_id", s.GameID), zap.String("winner", string(s.Winner)))
	}
}

func identityOf(p *game.Participant) profile.Identity {
	return profile.Identity{ID: p.ID, Name: p.Name, Persistent: !p.IsTemporary}
}

// ExpireOverdue finishes every live game whose on-turn seat ran out of time.
// A game moved on concurrently is left alone. It returns how many games were
// ended.
func (m *Manager) ExpireOverdue(ctx context.Context) (int, error) {
	games, err := docstore.List[game.Session](ctx, m.store, docstore.Games)
	if err != nil {
		return 0, err
	}
	now := m.engine.Now()
	ended := 0
	for _, g := range games {
		if !g.Overdue(now) {
			continue
		}
		var tr *game.Transition
		_, err := docstore.Update(ctx, m.store, docstore.Games, g.GameID, func(cur *game.Session) (*game.Session, error) {
			t, err := m.engine.Expire(cur, now)
			if err != nil {
				return nil, err
			}
			tr = t
			return t.Session, nil
		})
		switch {
		case err == nil:
			ended++
			m.committed(ctx, "game_sweep_timeout", tr)
		case errors.Is(err, docstore.ErrConflict),
			errors.Is(err, docstore.ErrNotFound),
			errors.Is(err, game.ErrDeadlineNotPassed),
			errors.Is(err, game.ErrNotActive):
		default:
			obslog.L().Warn("game_sweep_failed", zap.String("game_id", g.GameID), zap.Error(err))
		}
	}
	return ended, nil
}

// Subscribe streams snapshots of one game.
func (m *Manager) Subscribe(ctx context.Context, gameID string) (*docstore.Subscription, error) {
	return m.store.Subscribe(ctx, docstore.Games, gameID)
}

// Alternatives projects the answers that would satisfy the game's prompt.
func (m *Manager) Alternatives(ctx context.Context, gameID string, limit int) (game.Alternatives, error) {
	s, err := m.Load(ctx, gameID)
	if err != nil {
		return game.Alternatives{}, err
	}
	return m.engine.Alternatives(s, limit), nil
}

// Answer is an athlete with the number of times it was played.
type Answer struct {
	AthleteID string `json:"athleteId"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
}

func (m *Manager) PopularAnswers(ctx context.Context, n int) ([]Answer, error) {
	top, err := m.store.TopRank(ctx, AnswersRank, n)
	if err != nil {
		return nil, err
	}
	out := make([]Answer, 0, len(top))
	for _, r := range top {
		a := Answer{AthleteID: r.Member, Name: r.Member, Count: int(r.Score)}
		if ath, ok := m.index.Athlete(r.Member); ok {
			a.Name = ath.Name
		}
		out = append(out, a)
	}
	return out, nil
}

// RecentGames lists archived games of a user, newest first.
func (m *Manager) RecentGames(ctx context.Context, userID string, limit int) ([]*GameSummary, error) {
	if m.archive == nil {
		return nil, nil
	}
	recs, err := m.archive.RecentGames(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*GameSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, summarize(r, userID))
	}
	return out, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrGameNotFound
	}
	return err
}
