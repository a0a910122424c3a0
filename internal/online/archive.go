package online

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/ballknower/internal/domain"
	"github.com/park285/ballknower/internal/game"
)

// Archive keeps finished games after their live documents expire.
type Archive interface {
	SaveResult(ctx context.Context, rec *domain.GameRecord) error
	RecentGames(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error)
}

const schema = `CREATE TABLE IF NOT EXISTS ballknower_games (
    game_id       TEXT PRIMARY KEY,
    player_a_id   TEXT NOT NULL,
    player_a_name TEXT NOT NULL,
    player_b_id   TEXT NOT NULL,
    player_b_name TEXT NOT NULL,
    winner        TEXT NOT NULL,
    winner_id     TEXT NOT NULL,
    end_reason    TEXT NOT NULL,
    matchmade     BOOLEAN NOT NULL DEFAULT FALSE,
    moves         INTEGER NOT NULL,
    history       JSONB NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

type PostgresArchive struct {
	db *sql.DB
}

func NewPostgresArchive(databaseURL string) (*PostgresArchive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresArchive{db: db}, nil
}

func (r *PostgresArchive) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game.
func (r *PostgresArchive) SaveResult(ctx context.Context, rec *domain.GameRecord) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	history := rec.History
	if len(history) == 0 {
		history = []byte("[]")
	}
	const q = `INSERT INTO ballknower_games (
        game_id, player_a_id, player_a_name, player_b_id, player_b_name,
        winner, winner_id, end_reason, matchmade, moves, history,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13,$14
      ) ON CONFLICT (game_id) DO UPDATE SET
        player_a_id=EXCLUDED.player_a_id,
        player_a_name=EXCLUDED.player_a_name,
        player_b_id=EXCLUDED.player_b_id,
        player_b_name=EXCLUDED.player_b_name,
        winner=EXCLUDED.winner,
        winner_id=EXCLUDED.winner_id,
        end_reason=EXCLUDED.end_reason,
        matchmade=EXCLUDED.matchmade,
        moves=EXCLUDED.moves,
        history=EXCLUDED.history,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`
	_, err := r.db.ExecContext(ctx, q,
		rec.GameID,
		rec.PlayerAID, rec.PlayerAName,
		rec.PlayerBID, rec.PlayerBName,
		rec.Winner, rec.WinnerID, rec.EndReason, rec.Matchmade, rec.Moves, string(history),
		rec.StartedAt, rec.EndedAt, rec.Duration.Milliseconds(),
	)
	return err
}

func (r *PostgresArchive) RecentGames(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT game_id, player_a_id, player_a_name, player_b_id, player_b_name,
        winner, winner_id, end_reason, matchmade, moves, history,
        started_at, ended_at, duration_ms
      FROM ballknower_games
      WHERE player_a_id = $1 OR player_b_id = $1
      ORDER BY ended_at DESC
      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.GameRecord
	for rows.Next() {
		var (
			rec        domain.GameRecord
			history    string
			durationMS int64
		)
		if err := rows.Scan(
			&rec.GameID, &rec.PlayerAID, &rec.PlayerAName, &rec.PlayerBID, &rec.PlayerBName,
			&rec.Winner, &rec.WinnerID, &rec.EndReason, &rec.Matchmade, &rec.Moves, &history,
			&rec.StartedAt, &rec.EndedAt, &durationMS,
		); err != nil {
			return nil, err
		}
		rec.History = []byte(history)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// memoryArchive is used when no database is configured.
type memoryArchive struct {
	mu    sync.RWMutex
	games map[string]*domain.GameRecord
}

func NewMemoryArchive() Archive {
	return &memoryArchive{games: make(map[string]*domain.GameRecord)}
}

func (m *memoryArchive) SaveResult(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return nil
	}
	cp := *rec
	m.mu.Lock()
	m.games[rec.GameID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memoryArchive) RecentGames(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []*domain.GameRecord
	for _, g := range m.games {
		if g.PlayerAID == userID || g.PlayerBID == userID {
			cp := *g
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EndedAt.After(items[j].EndedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func recordFromSession(s *game.Session) *domain.GameRecord {
	history, _ := json.Marshal(s.History)
	rec := &domain.GameRecord{
		GameID:    s.GameID,
		Winner:    string(s.Winner),
		EndReason: string(s.EndReason),
		Matchmade: s.Matchmade,
		Moves:     s.MoveCount(),
		History:   history,
		StartedAt: s.CreatedAt,
		EndedAt:   s.UpdatedAt,
	}
	if a := s.Players.A; a != nil {
		rec.PlayerAID, rec.PlayerAName = a.ID, a.Name
	}
	if b := s.Players.B; b != nil {
		rec.PlayerBID, rec.PlayerBName = b.ID, b.Name
	}
	if w := s.Players.Seat(s.Winner); w != nil {
		rec.WinnerID = w.ID
	}
	if d := rec.EndedAt.Sub(rec.StartedAt); d > 0 {
		rec.Duration = d
	}
	return rec
}

// GameSummary is an archived game seen from one participant.
type GameSummary struct {
	GameID       string    `json:"gameId"`
	OpponentID   string    `json:"opponentId"`
	OpponentName string    `json:"opponentName"`
	Won          bool      `json:"won"`
	EndReason    string    `json:"endReason"`
	Moves        int       `json:"moves"`
	EndedAt      time.Time `json:"endedAt"`
}

func summarize(r *domain.GameRecord, userID string) *GameSummary {
	out := &GameSummary{
		GameID:    r.GameID,
		Won:       r.WinnerID == userID,
		EndReason: r.EndReason,
		Moves:     r.Moves,
		EndedAt:   r.EndedAt,
	}
	if r.PlayerAID == userID {
		out.OpponentID, out.OpponentName = r.PlayerBID, r.PlayerBName
	} else {
		out.OpponentID, out.OpponentName = r.PlayerAID, r.PlayerAName
	}
	return out
}
