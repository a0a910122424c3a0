package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Ref names one document.
type Ref struct {
	Collection Collection
	ID         string
}

// Tx buffers writes while fn runs. Reads go through the WATCHed connection,
// so any change to a watched document between read and commit aborts the
// whole transaction.
type Tx struct {
	ctx    context.Context
	s      *Store
	tx     *redis.Tx
	writes []write
}

type write struct {
	c       Collection
	id      string
	raw     []byte
	deleted bool
	rank    *rankWrite
}

type rankWrite struct {
	name   string
	member string
	score  float64
}

// Txn runs fn with the referenced documents watched and commits its writes
// atomically. A watched document modified concurrently yields ErrConflict.
// Documents read but not listed in refs are not protected.
func (s *Store) Txn(ctx context.Context, fn func(tx *Tx) error, refs ...Ref) error {
	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		keys = append(keys, docKey(r.Collection, r.ID))
	}
	err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
		t := &Tx{ctx: ctx, s: s, tx: rtx}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.writes) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range t.writes {
				switch {
				case w.rank != nil:
					pipe.ZAdd(ctx, rankKey(w.rank.name), redis.Z{Score: w.rank.score, Member: w.rank.member})
				case w.deleted:
					pipe.Del(ctx, docKey(w.c, w.id))
					pipe.SRem(ctx, indexKey(w.c), w.id)
					pipe.Publish(ctx, changeChannel(w.c, w.id), encodeChange(w.c, w.id, nil, true))
				default:
					pipe.Set(ctx, docKey(w.c, w.id), w.raw, s.ttl[w.c])
					pipe.SAdd(ctx, indexKey(w.c), w.id)
					pipe.Publish(ctx, changeChannel(w.c, w.id), encodeChange(w.c, w.id, w.raw, false))
				}
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// Get reads a document, seeing this transaction's own buffered writes.
func (t *Tx) Get(c Collection, id string, out any) error {
	for i := len(t.writes) - 1; i >= 0; i-- {
		w := t.writes[i]
		if w.rank != nil || w.c != c || w.id != id {
			continue
		}
		if w.deleted {
			return ErrNotFound
		}
		return json.Unmarshal(w.raw, out)
	}
	raw, err := t.tx.Get(t.ctx, docKey(c, id)).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Exists reports whether the document is present.
func (t *Tx) Exists(c Collection, id string) (bool, error) {
	var probe json.RawMessage
	err := t.Get(c, id, &probe)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *Tx) Set(c Collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, write{c: c, id: id, raw: raw})
	return nil
}

func (t *Tx) Delete(c Collection, id string) {
	t.writes = append(t.writes, write{c: c, id: id, deleted: true})
}

// SetRank records member's score in a named sorted set on commit.
func (t *Tx) SetRank(name, member string, score float64) {
	t.writes = append(t.writes, write{rank: &rankWrite{name: name, member: member, score: score}})
}
