// Package httpapi exposes the game over JSON HTTP and streams game snapshots
// over websockets. Identity comes from headers set by the identity provider
// in front of this service.
package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/daily"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/matchmaking"
	"github.com/park285/ballknower/internal/msgcat"
	"github.com/park285/ballknower/internal/obslog"
	"github.com/park285/ballknower/internal/online"
	"github.com/park285/ballknower/internal/profile"
	"github.com/park285/ballknower/pkg/gamedto"
)

const (
	HeaderUserID         = "X-User-Id"
	HeaderUserName       = "X-User-Name"
	HeaderUserPersistent = "X-User-Persistent"

	maxBody      = 64 << 10
	defaultLimit = 10
	maxListLimit = 100
	altLimit     = 25
)

type Deps struct {
	Games    *online.Manager
	Lobby    *matchmaking.Coordinator
	Daily    *daily.Scorer
	Profiles *profile.Service
	Index    *attrindex.Index
	Messages *msgcat.Catalog
	// OriginPatterns are the hosts allowed to open websockets.
	OriginPatterns []string
}

type Server struct {
	games    *online.Manager
	lobby    *matchmaking.Coordinator
	daily    *daily.Scorer
	profiles *profile.Service
	index    *attrindex.Index
	msgs     *msgcat.Catalog
	origins  []string
	router   *httprouter.Router
}

func New(d Deps) *Server {
	s := &Server{
		games:    d.Games,
		lobby:    d.Lobby,
		daily:    d.Daily,
		profiles: d.Profiles,
		index:    d.Index,
		msgs:     d.Messages,
		origins:  d.OriginPatterns,
		router:   httprouter.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.POST("/games", s.createGame)
	r.GET("/games/:id", s.getGame)
	r.POST("/games/:id/join", s.joinGame)
	r.POST("/games/:id/moves", s.submitMove)
	r.POST("/games/:id/challenge", s.challenge)
	r.POST("/games/:id/challenge/response", s.respond)
	r.POST("/games/:id/reverse", s.reverse)
	r.POST("/games/:id/give-up", s.giveUp)
	r.POST("/games/:id/timeout", s.timeout)
	r.GET("/games/:id/alternatives", s.alternatives)
	r.GET("/games/:id/ws", s.watchGame)

	r.POST("/lobby", s.requestMatch)
	r.DELETE("/lobby", s.cancelMatch)
	r.GET("/lobby/waiting", s.lobbyWaiting)

	r.GET("/daily/:date", s.getPuzzle)
	r.POST("/daily/:date/plays", s.playDaily)

	r.GET("/users/:id", s.getProfile)
	r.GET("/users/:id/games", s.recentGames)
	r.GET("/leaderboard", s.leaderboard)
	r.GET("/answers/popular", s.popularAnswers)

	r.GET("/search/athletes", s.searchAthletes)
	r.GET("/search/teams", s.searchTeams)
	r.GET("/search/colleges", s.searchColleges)

	r.PanicHandler = func(w http.ResponseWriter, req *http.Request, v any) {
		obslog.L().Error("http_panic", zap.String("path", req.URL.Path), zap.Any("panic", v))
		s.fail(w, fmt.Errorf("panic: %v", v))
	}
}

// Handler returns the router wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		s.router.ServeHTTP(rec, r)
		obslog.L().Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("user_id", r.Header.Get(HeaderUserID)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack passes the websocket upgrade through to the server connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func identityFrom(r *http.Request) profile.Identity {
	persistent, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(HeaderUserPersistent)))
	return profile.Identity{
		ID:         strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Name:       strings.TrimSpace(r.Header.Get(HeaderUserName)),
		Persistent: persistent,
	}
}

func requireIdentity(r *http.Request) (profile.Identity, error) {
	who := identityFrom(r)
	if who.ID == "" {
		return who, matchmaking.ErrNoIdentity
	}
	return who, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, de := s.domainError(err)
	if status >= http.StatusInternalServerError {
		obslog.L().Warn("http_error", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, gamedto.ErrorResponse{Error: de})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func submissionOf(m gamedto.MoveRequest) (game.Submission, error) {
	sub := game.Submission{Value: m.Value}
	if t := strings.TrimSpace(m.Type); t != "" {
		k, ok := attrindex.ParseKind(t)
		if !ok {
			return sub, game.ErrInvalidAttributeType
		}
		sub.Type = k
	}
	return sub, nil
}
