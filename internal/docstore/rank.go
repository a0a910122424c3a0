package docstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Ranked is one sorted-set member with its score.
type Ranked struct {
	Member string
	Score  float64
}

// IncrRank adds delta to member's score in the named sorted set.
func (s *Store) IncrRank(ctx context.Context, name, member string, delta float64) error {
	return s.rdb.ZIncrBy(ctx, rankKey(name), delta, member).Err()
}

// TopRank returns the n highest scored members, best first.
func (s *Store) TopRank(ctx context.Context, name string, n int) ([]Ranked, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, rankKey(name), 0, int64(n-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	out := make([]Ranked, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		out = append(out, Ranked{Member: m, Score: z.Score})
	}
	return out, nil
}
