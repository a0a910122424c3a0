package daily

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/obslog"
	"github.com/park285/ballknower/internal/profile"
)

var (
	ErrInvalidLink   = errors.New("submission does not link to the previous answer")
	ErrAlreadySolved = errors.New("the end of the chain was already reached")
	ErrEmptyAttempt  = errors.New("no submissions")
)

// soloTurnLimit keeps the shared engine's turn limit out of the way.
const soloTurnLimit = 1 << 20

// Attempt is one player's chain through a puzzle. Wrong links are rejected
// and leave the attempt unchanged; unlike the head-to-head game they never
// end it.
type Attempt struct {
	engine  *game.Engine
	session *game.Session
	end     game.Entity
	moves   int
	solved  bool
}

// Submit plays one link and reports whether it reached the end entity.
func (a *Attempt) Submit(sub game.Submission) (bool, error) {
	if a.solved {
		return true, ErrAlreadySolved
	}
	tr, err := a.engine.Submit(a.session, a.session.Turn, sub)
	if err != nil {
		return false, err
	}
	if tr.Failure != nil {
		return false, fmt.Errorf("%w: %s", ErrInvalidLink, tr.Failure.Message)
	}
	a.session = tr.Session
	a.moves++
	if a.end.Matches(tr.Entry) {
		a.solved = true
	}
	return a.solved, nil
}

func (a *Attempt) Moves() int                   { return a.moves }
func (a *Attempt) Solved() bool                 { return a.solved }
func (a *Attempt) Next() game.InputType         { return a.session.NextInputType }
func (a *Attempt) History() []game.HistoryEntry { return a.session.History }

// Result is what a replayed attempt produced.
type Result struct {
	Date   string  `json:"date"`
	Moves  int     `json:"moves"`
	Solved bool    `json:"solved"`
	Puzzle *Puzzle `json:"puzzle,omitempty"`

	// Recorded is true when this completion became the user's result for
	// the date. PersonalBest is the stored result either way.
	Recorded     bool `json:"recorded"`
	PersonalBest int  `json:"personalBest,omitempty"`
}

type Scorer struct {
	puzzles  *Store
	engine   *game.Engine
	profiles *profile.Service
	now      func() time.Time
}

type ScorerOption func(*Scorer)

func WithProfiles(p *profile.Service) ScorerOption { return func(s *Scorer) { s.profiles = p } }

func WithClock(now func() time.Time) ScorerOption {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScorer(puzzles *Store, idx game.Lookup, opts ...ScorerOption) *Scorer {
	s := &Scorer{puzzles: puzzles, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = game.NewEngine(idx, game.WithTurnLimit(soloTurnLimit), game.WithClock(s.now))
	return s
}

func (s *Scorer) Today() string { return Key(s.now()) }

// Puzzle loads the puzzle of a date key; "today" and "" mean the current date.
func (s *Scorer) Puzzle(ctx context.Context, key string) (*Puzzle, error) {
	key, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return s.puzzles.Get(ctx, key)
}

func (s *Scorer) resolve(key string) (string, error) {
	if key == "" || key == "today" {
		return s.Today(), nil
	}
	if _, err := ParseKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Begin opens an attempt at p.
func (s *Scorer) Begin(p *Puzzle, who game.Participant) (*Attempt, error) {
	sess, err := s.engine.NewSolo(p.Date, who, p.Start())
	if err != nil {
		return nil, err
	}
	return &Attempt{engine: s.engine, session: sess, end: p.End()}, nil
}

// Play replays a whole attempt. A rejected link fails the call with its
// index. A solved attempt adds to the date's counters; the user's result is
// written only for the current date and only the first time.
func (s *Scorer) Play(ctx context.Context, key string, who profile.Identity, subs []game.Submission) (*Result, error) {
	if len(subs) == 0 {
		return nil, ErrEmptyAttempt
	}
	p, err := s.Puzzle(ctx, key)
	if err != nil {
		return nil, err
	}
	at, err := s.Begin(p, game.Participant{ID: who.ID, Name: who.Name, IsTemporary: !who.Persistent})
	if err != nil {
		return nil, err
	}
	for i, sub := range subs {
		if _, err := at.Submit(sub); err != nil {
			return nil, fmt.Errorf("submission %d: %w", i+1, err)
		}
	}
	res := &Result{Date: p.Date, Moves: at.Moves(), Solved: at.Solved(), Puzzle: p}
	if !res.Solved {
		return res, nil
	}

	if updated, err := s.puzzles.AddCompletion(ctx, p.Date, res.Moves); err != nil {
		obslog.L().Warn("daily_counter_failed", zap.String("date", p.Date), zap.Error(err))
	} else {
		res.Puzzle = updated
	}
	if s.profiles != nil && who.Persistent && p.Date == s.Today() {
		recorded, err := s.profiles.RecordDaily(ctx, who, p.Date, res.Moves)
		if err != nil {
			return nil, err
		}
		res.Recorded = recorded
		if prof, err := s.profiles.Get(ctx, who.ID); err == nil {
			res.PersonalBest = prof.Stats.Daily[p.Date]
		}
	}
	obslog.L().Info("daily_complete",
		zap.String("date", p.Date),
		zap.String("user_id", who.ID),
		zap.Int("moves", res.Moves),
		zap.Bool("recorded", res.Recorded),
	)
	return res, nil
}
