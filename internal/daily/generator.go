package daily

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/obslog"
)

// Candidate is an entity a puzzle may start or end on.
type Candidate struct {
	ID     string
	Type   attrindex.Kind
	League string
}

// Candidates collects every athlete and every team with a league.
func Candidates(idx *attrindex.Index) []Candidate {
	var out []Candidate
	for _, a := range idx.Athletes() {
		if a.League == "" || !a.Linkable() {
			continue
		}
		out = append(out, Candidate{ID: a.ID, Type: attrindex.KindPlayer, League: a.League})
	}
	for _, t := range idx.Teams() {
		if t.League == "" || !idx.AnyCarrier(attrindex.KindTeam, t.ID) {
			continue
		}
		out = append(out, Candidate{ID: t.ID, Type: attrindex.KindTeam, League: t.League})
	}
	return out
}

type Generator struct {
	puzzles    *Store
	candidates []Candidate
	rnd        *rand.Rand
}

func NewGenerator(puzzles *Store, candidates []Candidate, rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6b6e6f776572))
	}
	return &Generator{puzzles: puzzles, candidates: candidates, rnd: rnd}
}

var ErrNoCandidates = errors.New("not enough candidates from two leagues")

// Pick draws a start and an end from different leagues.
func (g *Generator) Pick() (start, end Candidate, err error) {
	if len(g.candidates) == 0 {
		return Candidate{}, Candidate{}, ErrNoCandidates
	}
	start = g.candidates[g.rnd.IntN(len(g.candidates))]
	var others []Candidate
	for _, c := range g.candidates {
		if c.League != start.League {
			others = append(others, c)
		}
	}
	if len(others) == 0 {
		return Candidate{}, Candidate{}, ErrNoCandidates
	}
	return start, others[g.rnd.IntN(len(others))], nil
}

// Generate makes sure each of the days after from has a puzzle. Dates that
// already have one are left untouched. It returns how many were created.
func (g *Generator) Generate(ctx context.Context, from time.Time, days int) (int, error) {
	created := 0
	for i := 1; i <= days; i++ {
		key := Key(from.In(eastern).AddDate(0, 0, i))
		if _, err := g.puzzles.Get(ctx, key); err == nil {
			continue
		} else if !errors.Is(err, ErrNoPuzzle) {
			return created, err
		}
		start, end, err := g.Pick()
		if err != nil {
			return created, err
		}
		p := &Puzzle{
			Date:         key,
			StartID:      start.ID,
			StartType:    start.Type,
			EndID:        end.ID,
			EndType:      end.Type,
			ShortestPath: ShortestPath(start.Type, end.Type),
		}
		if err := g.puzzles.Create(ctx, p); err != nil {
			if errors.Is(err, docstore.ErrExists) {
				continue
			}
			return created, err
		}
		created++
	}
	if created > 0 {
		obslog.L().Info("daily_generate", zap.Int("created", created), zap.Int("horizon_days", days))
	}
	return created, nil
}
