package main

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/ballknower/internal/attrindex"
	appcfg "github.com/park285/ballknower/internal/config"
	"github.com/park285/ballknower/internal/daily"
	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/httpapi"
	"github.com/park285/ballknower/internal/matchmaking"
	"github.com/park285/ballknower/internal/msgcat"
	"github.com/park285/ballknower/internal/obslog"
	"github.com/park285/ballknower/internal/online"
	"github.com/park285/ballknower/internal/profile"
	"github.com/park285/ballknower/internal/scheduler"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	idx, err := attrindex.NewLoader().Load(ctx, attrindex.Sources{
		Players:        cfg.PlayersSource,
		Teams:          cfg.TeamsSource,
		CollegeAliases: cfg.CollegeAliasesSource,
	})
	cancel()
	if err != nil {
		logger.Fatal("index_load_failed", zap.Error(err))
	}
	athletes, teams := idx.Size()
	logger.Info("index_loaded", zap.Int("athletes", athletes), zap.Int("teams", teams))

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	docs, err := docstore.NewFromURL(ctx, cfg.RedisURL,
		docstore.WithTTL(docstore.Games, cfg.DocTTL),
		docstore.WithTTL(docstore.Lobby, cfg.MatchWindow*2),
	)
	cancel()
	if err != nil {
		logger.Fatal("docstore_init_failed", zap.Error(err))
	}
	defer docs.Close()

	var archive online.Archive
	if cfg.DatabaseURL != "" {
		pg, err := online.NewPostgresArchive(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive_init_failed", zap.Error(err))
		}
		defer pg.Close()
		archive = pg
	} else {
		logger.Warn("archive_in_memory", zap.String("reason", "DATABASE_URL not set"))
		archive = online.NewMemoryArchive()
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_failed", zap.Error(err))
	}

	engine := game.NewEngine(idx,
		game.WithTurnLimit(cfg.TurnLimit),
		game.WithTurnDuration(cfg.TurnDuration),
	)
	profiles := profile.NewService(docs)
	newID := func() string { return "game_" + uuid.NewString() }
	games := online.NewManager(docs, engine,
		online.WithProfiles(profiles),
		online.WithArchive(archive),
		online.WithIndex(idx),
		online.WithIDGenerator(newID),
	)
	lobby := matchmaking.NewCoordinator(docs, engine, matchmaking.Config{
		Window:   cfg.MatchWindow,
		Tick:     cfg.MatchTick,
		MaxTicks: cfg.MatchMaxTicks,
	}, matchmaking.WithProfiles(profiles), matchmaking.WithIDGenerator(newID))

	puzzles := daily.NewStore(docs)
	scorer := daily.NewScorer(puzzles, idx, daily.WithProfiles(profiles))
	gen := daily.NewGenerator(puzzles, daily.Candidates(idx), rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))

	sched, err := scheduler.New(scheduler.Config{
		SweepInterval: cfg.SweepInterval,
		DailyHorizon:  cfg.DailyHorizonDays,
	}, games, gen)
	if err != nil {
		logger.Fatal("scheduler_init_failed", zap.Error(err))
	}
	sched.Start()

	api := httpapi.New(httpapi.Deps{
		Games:          games,
		Lobby:          lobby,
		Daily:          scorer,
		Profiles:       profiles,
		Index:          idx,
		Messages:       msgs,
		OriginPatterns: cfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http_serve_failed", zap.Error(err))
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown")

	// Matchmaking requests block for up to the match window.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.MatchWindow+5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		logger.Warn("scheduler_shutdown", zap.Error(err))
	}
}
