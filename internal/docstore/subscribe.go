package docstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/obslog"
)

// Subscription delivers changes of one document, or of a whole collection.
type Subscription struct {
	ps   *redis.PubSub
	ch   chan Change
	done chan struct{}
	once sync.Once
}

// Subscribe returns once the subscription is confirmed by the server, so a
// write issued after it returns is guaranteed to be delivered. An empty id
// subscribes to every document of the collection.
func (s *Store) Subscribe(ctx context.Context, c Collection, id string) (*Subscription, error) {
	var ps *redis.PubSub
	if id == "" {
		ps = s.rdb.PSubscribe(ctx, changeChannel(c, "*"))
	} else {
		ps = s.rdb.Subscribe(ctx, changeChannel(c, id))
	}
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub := &Subscription{ps: ps, ch: make(chan Change, 16), done: make(chan struct{})}
	go sub.pump()
	return sub, nil
}

func (sub *Subscription) pump() {
	defer close(sub.ch)
	for msg := range sub.ps.Channel() {
		var ch Change
		if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
			obslog.L().Warn("docstore_change_decode", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		select {
		case sub.ch <- ch:
		case <-sub.done:
			return
		}
	}
}

// Changes is closed after Close.
func (sub *Subscription) Changes() <-chan Change { return sub.ch }

func (sub *Subscription) Close() error {
	var err error
	sub.once.Do(func() {
		close(sub.done)
		err = sub.ps.Close()
	})
	return err
}
