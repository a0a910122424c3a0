// Package daily runs the single-player daily challenge: one start and one
// end entity per calendar date, aggregate completion counters per date and a
// write-once personal result per user.
package daily

import (
	"context"
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/game"
)

// KeyLayout renders dates as "March 1, 2025".
const KeyLayout = "January 2, 2006"

var (
	ErrNoPuzzle   = errors.New("no daily challenge for this date")
	ErrBadDateKey = errors.New("invalid date key")
)

var eastern = mustLocation("America/New_York")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Key is the puzzle id for the US Eastern calendar date containing t.
func Key(t time.Time) string { return t.In(eastern).Format(KeyLayout) }

// ParseKey validates a key and returns its Eastern midnight.
func ParseKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(KeyLayout, strings.TrimSpace(key), eastern)
	if err != nil {
		return time.Time{}, ErrBadDateKey
	}
	return t, nil
}

// Puzzle is the stored record of one date. Plays and Moves only grow.
type Puzzle struct {
	Date         string         `json:"date"`
	StartID      string         `json:"startId"`
	StartType    attrindex.Kind `json:"startType"`
	EndID        string         `json:"endId"`
	EndType      attrindex.Kind `json:"endType"`
	ShortestPath int            `json:"shortestPath"`
	Plays        int            `json:"plays"`
	Moves        int            `json:"moves"`
}

func (p *Puzzle) Start() game.Entity { return game.Entity{Type: p.StartType, ID: p.StartID} }
func (p *Puzzle) End() game.Entity   { return game.Entity{Type: p.EndType, ID: p.EndID} }

// AverageMoves over all completions, zero before the first one.
func (p *Puzzle) AverageMoves() float64 {
	if p.Plays == 0 {
		return 0
	}
	return float64(p.Moves) / float64(p.Plays)
}

// ShortestPath is the lower bound advertised for a start/end pair.
func ShortestPath(start, end attrindex.Kind) int {
	if start == end {
		return 4
	}
	return 3
}

type Store struct {
	docs *docstore.Store
}

func NewStore(docs *docstore.Store) *Store { return &Store{docs: docs} }

func (s *Store) Get(ctx context.Context, key string) (*Puzzle, error) {
	var p Puzzle
	if err := s.docs.Get(ctx, docstore.Daily, key, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNoPuzzle
		}
		return nil, err
	}
	if p.Date == "" {
		p.Date = key
	}
	return &p, nil
}

// Create stores a puzzle for its date. An existing puzzle is never replaced
// and yields docstore.ErrExists.
func (s *Store) Create(ctx context.Context, p *Puzzle) error {
	return s.docs.Create(ctx, docstore.Daily, p.Date, p)
}

// AddCompletion adds one play and its move count to the date's counters.
func (s *Store) AddCompletion(ctx context.Context, key string, moves int) (*Puzzle, error) {
	var (
		p   *Puzzle
		err error
	)
	for attempt := 0; attempt < 3; attempt++ {
		p, err = docstore.Update(ctx, s.docs, docstore.Daily, key, func(cur *Puzzle) (*Puzzle, error) {
			cur.Plays++
			cur.Moves += moves
			return cur, nil
		})
		if !errors.Is(err, docstore.ErrConflict) {
			break
		}
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNoPuzzle
	}
	return p, err
}
