// Package docstore keeps JSON documents in Redis, grouped in collections.
//
// Every document lives at bk:<collection>:<id> and its id is recorded in the
// collection's index set. Writes publish the post-write snapshot on
// bk:changes:<collection>:<id> so subscribers observe whole documents only.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Collection string

const (
	Games Collection = "games"
	Lobby Collection = "lobby"
	Users Collection = "users"
	Daily Collection = "daily"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
	// ErrConflict means a watched document changed before commit. Nothing
	// was written; the caller may retry the same intent.
	ErrConflict = errors.New("concurrent update detected, please retry")
)

const keyPrefix = "bk:"

type Store struct {
	rdb *redis.Client
	ttl map[Collection]time.Duration
}

type Option func(*Store)

// WithTTL expires documents of c after d; zero keeps them forever.
func WithTTL(c Collection, d time.Duration) Option {
	return func(s *Store) { s.ttl[c] = d }
}

func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, ttl: make(map[Collection]time.Duration)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromURL connects and pings before returning.
func NewFromURL(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for document store")
	}
	ropts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts...), nil
}

func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}

func (s *Store) Client() *redis.Client { return s.rdb }

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("document store not initialized")
	}
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func docKey(c Collection, id string) string {
	return keyPrefix + string(c) + ":" + strings.TrimSpace(id)
}
func indexKey(c Collection) string { return keyPrefix + "index:" + string(c) }
func changeChannel(c Collection, id string) string {
	return keyPrefix + "changes:" + string(c) + ":" + strings.TrimSpace(id)
}
func rankKey(name string) string { return keyPrefix + "rank:" + name }

// Change is one published write.
type Change struct {
	Collection Collection      `json:"collection"`
	ID         string          `json:"id"`
	Deleted    bool            `json:"deleted,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Get decodes the document into out.
func (s *Store) Get(ctx context.Context, c Collection, id string, out any) error {
	raw, err := s.rdb.Get(ctx, docKey(c, id)).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Put overwrites the document.
func (s *Store) Put(ctx context.Context, c Collection, id string, v any) error {
	return s.Txn(ctx, func(tx *Tx) error { return tx.Set(c, id, v) })
}

// Create writes the document only when the id is free.
func (s *Store) Create(ctx context.Context, c Collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, docKey(c, id), raw, s.ttl[c]).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, indexKey(c), id)
	pipe.Publish(ctx, changeChannel(c, id), encodeChange(c, id, raw, false))
	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes the document; a missing document is not an error.
func (s *Store) Delete(ctx context.Context, c Collection, id string) error {
	return s.Txn(ctx, func(tx *Tx) error {
		tx.Delete(c, id)
		return nil
	})
}

// IDs lists the collection index. Ids whose documents expired are pruned.
func (s *Store) IDs(ctx context.Context, c Collection) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, indexKey(c)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(c, id)
	}
	exists := make([]*redis.IntCmd, len(keys))
	pipe := s.rdb.Pipeline()
	for i, k := range keys {
		exists[i] = pipe.Exists(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	live := ids[:0]
	var stale []any
	for i, id := range ids {
		if exists[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		_ = s.rdb.SRem(ctx, indexKey(c), stale...).Err()
	}
	return live, nil
}

// List decodes every live document of the collection.
func List[T any](ctx context.Context, s *Store, c Collection) ([]*T, error) {
	ids, err := s.IDs(ctx, c)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(c, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var doc T
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			continue
		}
		out = append(out, &doc)
	}
	return out, nil
}

// Update is a compare-and-swap on one document: fn receives the current
// value and returns the replacement. Returning an error aborts without writes.
func Update[T any](ctx context.Context, s *Store, c Collection, id string, fn func(cur *T) (*T, error)) (*T, error) {
	var result *T
	err := s.Txn(ctx, func(tx *Tx) error {
		var cur T
		if err := tx.Get(c, id, &cur); err != nil {
			return err
		}
		next, err := fn(&cur)
		if err != nil {
			return err
		}
		result = next
		return tx.Set(c, id, next)
	}, Ref{Collection: c, ID: id})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func encodeChange(c Collection, id string, raw []byte, deleted bool) []byte {
	b, _ := json.Marshal(Change{Collection: c, ID: id, Deleted: deleted, Data: raw})
	return b
}
