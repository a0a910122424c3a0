package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/ballknower/internal/obslog"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// snapshotFrame is one message on the game stream. Session is the raw stored
// document; Deleted marks that the game expired.
type snapshotFrame struct {
	GameID  string          `json:"gameId"`
	Session json.RawMessage `json:"session,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// watchGame streams every committed snapshot of a game. The first frame is
// the current state; the stream closes once the game document is gone.
func (s *Server) watchGame(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	gameID := p.ByName("id")
	sub, err := s.games.Subscribe(r.Context(), gameID)
	if err != nil {
		s.fail(w, err)
		return
	}
	defer sub.Close()

	sess, err := s.games.Load(r.Context(), gameID)
	if err != nil {
		s.fail(w, err)
		return
	}
	initial, err := json.Marshal(sess)
	if err != nil {
		s.fail(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	log := obslog.L().With(zap.String("game_id", gameID))
	log.Info("ws_open")

	if err := s.writeFrame(ctx, conn, snapshotFrame{GameID: gameID, Session: initial}); err != nil {
		log.Warn("ws_write_failed", zap.Error(err))
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("ws_closed")
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Warn("ws_ping_failed", zap.Error(err))
				return
			}
		case ch, ok := <-sub.Changes():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "stream ended")
				return
			}
			frame := snapshotFrame{GameID: ch.ID, Session: ch.Data, Deleted: ch.Deleted}
			if err := s.writeFrame(ctx, conn, frame); err != nil {
				log.Warn("ws_write_failed", zap.Error(err))
				return
			}
			if ch.Deleted {
				_ = conn.Close(websocket.StatusNormalClosure, "game expired")
				return
			}
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, f snapshotFrame) error {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, f)
}
