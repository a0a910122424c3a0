// Package matchmaking pairs waiting lobby tickets by nearest rating. The pair
// is claimed in one store transaction that re-reads both tickets, creates the
// game and marks both tickets matched, so a ticket can never be claimed twice.
package matchmaking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/obslog"
	"github.com/park285/ballknower/internal/profile"
	"github.com/park285/ballknower/internal/rating"
)

var (
	ErrNoIdentity     = errors.New("identity required for matchmaking")
	ErrAlreadyMatched = errors.New("ticket already matched")
	ErrNoTicket       = errors.New("no open ticket")

	// errStale aborts a claim whose tickets are no longer both waiting.
	errStale = errors.New("ticket no longer waiting")
)

const claimAttempts = 3

type Config struct {
	// Window bounds how old a candidate ticket may be.
	Window   time.Duration
	Tick     time.Duration
	MaxTicks int
}

func DefaultConfig() Config {
	return Config{Window: 60 * time.Second, Tick: time.Second, MaxTicks: 60}
}

type Coordinator struct {
	store    *docstore.Store
	engine   *game.Engine
	profiles *profile.Service
	cfg      Config
	newID    func() string
	now      func() time.Time
}

type Option func(*Coordinator)

// WithProfiles rates tickets from stored profiles instead of the default.
func WithProfiles(p *profile.Service) Option { return func(c *Coordinator) { c.profiles = p } }

func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCoordinator(store *docstore.Store, engine *game.Engine, cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = def.MaxTicks
	}
	c := &Coordinator{
		store:  store,
		engine: engine,
		cfg:    cfg,
		newID:  func() string { return "game_" + uuid.NewString() },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestMatch opens a ticket for who and searches until it is matched,
// cancelled by its owner, or the search runs out of ticks. Claims lost to a
// concurrent match are retried silently. The caller's context cancels the
// search and withdraws the ticket.
func (c *Coordinator) RequestMatch(ctx context.Context, who profile.Identity) (*Result, error) {
	uid := strings.TrimSpace(who.ID)
	if uid == "" {
		return nil, ErrNoIdentity
	}
	elo := rating.DefaultRating
	if c.profiles != nil {
		elo = c.profiles.Rating(ctx, who)
	}
	me := &Ticket{
		UID:         uid,
		DisplayName: strings.TrimSpace(who.Name),
		Elo:         elo,
		IsTemporary: !who.Persistent,
		Status:      TicketWaiting,
		CreatedAt:   c.now().UTC(),
	}
	if err := c.store.Put(ctx, docstore.Lobby, uid, me); err != nil {
		return nil, err
	}
	obslog.L().Info("lobby_ticket", zap.String("user_id", uid), zap.Int("elo", elo))

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()
	for tick := 0; ; {
		res, err := c.step(ctx, me)
		if err != nil {
			return nil, err
		}
		if res != nil {
			res.Ticks = tick
			return res, nil
		}
		select {
		case <-ctx.Done():
			_, _ = c.withdraw(context.WithoutCancel(ctx), uid)
			return nil, ctx.Err()
		case <-ticker.C:
		}
		tick++
		if tick >= c.cfg.MaxTicks {
			return c.expire(ctx, uid, tick)
		}
	}
}

// step checks the own ticket and tries to claim the nearest candidate. A nil
// result means keep waiting.
func (c *Coordinator) step(ctx context.Context, me *Ticket) (*Result, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var cur Ticket
		err := c.store.Get(ctx, docstore.Lobby, me.UID, &cur)
		if errors.Is(err, docstore.ErrNotFound) {
			obslog.L().Info("lobby_cancel", zap.String("user_id", me.UID))
			return &Result{Outcome: OutcomeCancelled}, nil
		}
		if err != nil {
			return nil, err
		}
		if cur.Status == TicketMatched {
			return &Result{Outcome: OutcomeMatched, GameID: cur.GameID, OpponentID: cur.MatchedWith}, nil
		}

		cand, err := c.findCandidate(ctx, me)
		if err != nil {
			return nil, err
		}
		if cand == nil {
			return nil, nil
		}
		gameID, err := c.claim(ctx, me.UID, cand.UID)
		switch {
		case err == nil:
			return &Result{Outcome: OutcomeMatched, GameID: gameID, OpponentID: cand.UID}, nil
		case errors.Is(err, docstore.ErrConflict), errors.Is(err, errStale):
			obslog.L().Debug("lobby_match_conflict",
				zap.String("user_id", me.UID),
				zap.String("candidate_id", cand.UID),
				zap.Error(err),
			)
		default:
			return nil, err
		}
	}
	return nil, nil
}

// findCandidate returns the waiting ticket nearest in rating among those
// created within the window, excluding self.
func (c *Coordinator) findCandidate(ctx context.Context, me *Ticket) (*Ticket, error) {
	all, err := docstore.List[Ticket](ctx, c.store, docstore.Lobby)
	if err != nil {
		return nil, err
	}
	since := c.now().Add(-c.cfg.Window)
	open := all[:0]
	for _, t := range all {
		if t.UID == me.UID || !t.waiting() || t.CreatedAt.Before(since) {
			continue
		}
		open = append(open, t)
	}
	return nearest(me.Elo, open), nil
}

// claim pairs mine (seat A) with theirs (seat B). Both tickets are watched;
// if either changed or is no longer waiting nothing is written.
func (c *Coordinator) claim(ctx context.Context, mine, theirs string) (string, error) {
	gameID := c.newID()
	err := c.store.Txn(ctx, func(tx *docstore.Tx) error {
		var a, b Ticket
		if err := tx.Get(docstore.Lobby, mine, &a); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return errStale
			}
			return err
		}
		if err := tx.Get(docstore.Lobby, theirs, &b); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return errStale
			}
			return err
		}
		if !a.waiting() || !b.waiting() {
			return errStale
		}
		s := c.engine.NewMatched(gameID, seatOf(&a), seatOf(&b))
		if err := tx.Set(docstore.Games, gameID, s); err != nil {
			return err
		}
		a.Status, a.GameID, a.MatchedWith = TicketMatched, gameID, b.UID
		b.Status, b.GameID, b.MatchedWith = TicketMatched, gameID, a.UID
		if err := tx.Set(docstore.Lobby, a.UID, &a); err != nil {
			return err
		}
		return tx.Set(docstore.Lobby, b.UID, &b)
	},
		docstore.Ref{Collection: docstore.Lobby, ID: mine},
		docstore.Ref{Collection: docstore.Lobby, ID: theirs},
	)
	if err != nil {
		return "", err
	}
	obslog.L().Info("lobby_match",
		zap.String("game_id", gameID),
		zap.String("player_a", mine),
		zap.String("player_b", theirs),
	)
	return gameID, nil
}

func seatOf(t *Ticket) game.Participant {
	return game.Participant{ID: t.UID, Name: t.DisplayName, IsTemporary: t.IsTemporary, Elo: t.Elo}
}

func (c *Coordinator) expire(ctx context.Context, uid string, ticks int) (*Result, error) {
	t, err := c.withdraw(ctx, uid)
	if err != nil {
		return nil, err
	}
	// A match that landed on the last tick wins over the timeout.
	if t != nil && t.Status == TicketMatched {
		return &Result{Outcome: OutcomeMatched, GameID: t.GameID, OpponentID: t.MatchedWith, Ticks: ticks}, nil
	}
	obslog.L().Info("lobby_timeout", zap.String("user_id", uid), zap.Int("ticks", ticks))
	return &Result{Outcome: OutcomeTimedOut, Ticks: ticks}, nil
}

// withdraw deletes a waiting ticket. It returns the ticket as it was; a
// matched ticket is left in place and returned unchanged.
func (c *Coordinator) withdraw(ctx context.Context, uid string) (*Ticket, error) {
	var out *Ticket
	err := c.store.Txn(ctx, func(tx *docstore.Tx) error {
		var t Ticket
		if err := tx.Get(docstore.Lobby, uid, &t); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			return err
		}
		out = &t
		if t.Status == TicketMatched {
			return nil
		}
		tx.Delete(docstore.Lobby, uid)
		return nil
	}, docstore.Ref{Collection: docstore.Lobby, ID: uid})
	return out, err
}

// Cancel withdraws the caller's waiting ticket. A search in progress sees
// the missing ticket and reports a cancellation.
func (c *Coordinator) Cancel(ctx context.Context, uid string) error {
	t, err := c.withdraw(ctx, uid)
	if err != nil {
		return err
	}
	switch {
	case t == nil:
		return ErrNoTicket
	case t.Status == TicketMatched:
		return ErrAlreadyMatched
	}
	obslog.L().Info("lobby_cancel", zap.String("user_id", uid))
	return nil
}

// Waiting counts open tickets within the search window.
func (c *Coordinator) Waiting(ctx context.Context) (int, error) {
	all, err := docstore.List[Ticket](ctx, c.store, docstore.Lobby)
	if err != nil {
		return 0, err
	}
	since := c.now().Add(-c.cfg.Window)
	n := 0
	for _, t := range all {
		if t.waiting() && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
