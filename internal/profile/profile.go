// Package profile keeps persistent user profiles: match counters, the
// append-only rating history, the rating leaderboard and daily results.
package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/obslog"
	"github.com/park285/ballknower/internal/rating"
)

// LeaderboardRank is the sorted set holding each profile's latest rating.
const LeaderboardRank = "elo"

const settleAttempts = 3

var ErrTemporary = errors.New("temporary identities have no profile")

// Identity is what the identity provider hands us: an opaque id and whether
// it is backed by a persistent account.
type Identity struct {
	ID         string
	Name       string
	Persistent bool
}

type Stats struct {
	Wins        int   `json:"wins"`
	Losses      int   `json:"losses"`
	GamesPlayed int   `json:"gamesPlayed"`
	EloRating   []int `json:"eloRating"`
	// Daily maps a puzzle date key to the move count of the first completion.
	Daily map[string]int `json:"daily,omitempty"`
}

type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Stats       Stats     `json:"stats"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Rating is the latest rating, DefaultRating for a fresh profile.
func (p *Profile) Rating() int {
	if p == nil {
		return rating.DefaultRating
	}
	return rating.Current(p.Stats.EloRating)
}

func newProfile(id, name string, now time.Time) *Profile {
	return &Profile{
		ID:          id,
		DisplayName: strings.TrimSpace(name),
		Stats:       Stats{EloRating: []int{}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type Service struct {
	store *docstore.Store
	now   func() time.Time
}

func NewService(store *docstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := s.store.Get(ctx, docstore.Users, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Ensure returns the profile, creating it on first sight.
func (s *Service) Ensure(ctx context.Context, who Identity) (*Profile, error) {
	if !who.Persistent || strings.TrimSpace(who.ID) == "" {
		return nil, ErrTemporary
	}
	p, err := s.Get(ctx, who.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}
	fresh := newProfile(who.ID, who.Name, s.now().UTC())
	if err := s.store.Create(ctx, docstore.Users, who.ID, fresh); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return s.Get(ctx, who.ID)
		}
		return nil, err
	}
	return fresh, nil
}

// Rating returns the identity's current rating. Temporary identities and
// unknown users rate DefaultRating.
func (s *Service) Rating(ctx context.Context, who Identity) int {
	if !who.Persistent {
		return rating.DefaultRating
	}
	p, err := s.Get(ctx, who.ID)
	if err != nil {
		return rating.DefaultRating
	}
	return p.Rating()
}

// Settlement reports the ratings written by Settle. A zero rating means the
// side was not persisted.
type Settlement struct {
	WinnerRating int
	LoserRating  int
}

// Settle records a finished match. Temporary identities are skipped without
// affecting the other side; when only one side is persistent it moves by the
// fixed fallback amounts.
func (s *Service) Settle(ctx context.Context, winner, loser Identity) (Settlement, error) {
	var (
		out Settlement
		err error
	)
	for attempt := 0; attempt < settleAttempts; attempt++ {
		out, err = s.settleOnce(ctx, winner, loser)
		if !errors.Is(err, docstore.ErrConflict) {
			break
		}
	}
	if err != nil {
		obslog.L().Warn("game_settle_failed",
			zap.String("winner_id", winner.ID),
			zap.String("loser_id", loser.ID),
			zap.Error(err),
		)
		return Settlement{}, err
	}
	obslog.L().Info("game_settle",
		zap.String("winner_id", winner.ID),
		zap.String("loser_id", loser.ID),
		zap.Int("winner_rating", out.WinnerRating),
		zap.Int("loser_rating", out.LoserRating),
	)
	return out, nil
}

func (s *Service) settleOnce(ctx context.Context, winner, loser Identity) (Settlement, error) {
	wp := winner.Persistent && winner.ID != ""
	lp := loser.Persistent && loser.ID != ""
	if !wp && !lp {
		return Settlement{}, nil
	}
	var refs []docstore.Ref
	if wp {
		refs = append(refs, docstore.Ref{Collection: docstore.Users, ID: winner.ID})
	}
	if lp {
		refs = append(refs, docstore.Ref{Collection: docstore.Users, ID: loser.ID})
	}
	now := s.now().UTC()
	var out Settlement
	err := s.store.Txn(ctx, func(tx *docstore.Tx) error {
		var w, l *Profile
		var err error
		if wp {
			if w, err = loadOrNew(tx, winner, now); err != nil {
				return err
			}
		}
		if lp {
			if l, err = loadOrNew(tx, loser, now); err != nil {
				return err
			}
		}
		switch {
		case wp && lp:
			out.WinnerRating, out.LoserRating = rating.Update(
				rating.Player{Rating: w.Rating(), GamesPlayed: w.Stats.GamesPlayed},
				rating.Player{Rating: l.Rating(), GamesPlayed: l.Stats.GamesPlayed},
			)
		case wp:
			out.WinnerRating = rating.WinAgainstUnrated(w.Rating())
		default:
			out.LoserRating = rating.LossAgainstUnrated(l.Rating())
		}
		if w != nil {
			w.Stats.Wins++
			w.Stats.GamesPlayed++
			w.Stats.EloRating = append(w.Stats.EloRating, out.WinnerRating)
			w.UpdatedAt = now
			if err := tx.Set(docstore.Users, w.ID, w); err != nil {
				return err
			}
			tx.SetRank(LeaderboardRank, w.ID, float64(out.WinnerRating))
		}
		if l != nil {
			l.Stats.Losses++
			l.Stats.GamesPlayed++
			l.Stats.EloRating = append(l.Stats.EloRating, out.LoserRating)
			l.UpdatedAt = now
			if err := tx.Set(docstore.Users, l.ID, l); err != nil {
				return err
			}
			tx.SetRank(LeaderboardRank, l.ID, float64(out.LoserRating))
		}
		return nil
	}, refs...)
	return out, err
}

func loadOrNew(tx *docstore.Tx, who Identity, now time.Time) (*Profile, error) {
	var p Profile
	err := tx.Get(docstore.Users, who.ID, &p)
	if errors.Is(err, docstore.ErrNotFound) {
		return newProfile(who.ID, who.Name, now), nil
	}
	if err != nil {
		return nil, err
	}
	if p.DisplayName == "" {
		p.DisplayName = strings.TrimSpace(who.Name)
	}
	return &p, nil
}

// RecordDaily stores the move count of the user's first completion of the
// puzzle dated dateKey. It reports false when a result already exists; the
// stored result is never replaced.
func (s *Service) RecordDaily(ctx context.Context, who Identity, dateKey string, moves int) (bool, error) {
	if !who.Persistent || who.ID == "" {
		return false, ErrTemporary
	}
	recorded := false
	now := s.now().UTC()
	err := s.store.Txn(ctx, func(tx *docstore.Tx) error {
		p, err := loadOrNew(tx, who, now)
		if err != nil {
			return err
		}
		if _, done := p.Stats.Daily[dateKey]; done {
			return nil
		}
		if p.Stats.Daily == nil {
			p.Stats.Daily = make(map[string]int)
		}
		p.Stats.Daily[dateKey] = moves
		p.UpdatedAt = now
		recorded = true
		return tx.Set(docstore.Users, p.ID, p)
	}, docstore.Ref{Collection: docstore.Users, ID: who.ID})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

// Standing is one leaderboard row.
type Standing struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
}

// Leaderboard lists the n highest rated profiles.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]Standing, error) {
	top, err := s.store.TopRank(ctx, LeaderboardRank, n)
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(top))
	for _, r := range top {
		st := Standing{ID: r.Member, DisplayName: r.Member, Rating: int(r.Score)}
		if p, err := s.Get(ctx, r.Member); err == nil && p.DisplayName != "" {
			st.DisplayName = p.DisplayName
		}
		out = append(out, st)
	}
	return out, nil
}
