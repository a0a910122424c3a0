package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/daily"
	"github.com/park285/ballknower/internal/docstore"
)

// indexcheck loads the reference data the server would load and reports what
// it found. With REDIS_URL set it also checks the store and today's puzzle.
func main() {
	players := os.Getenv("PLAYERS_SOURCE")
	teams := os.Getenv("TEAMS_SOURCE")
	aliases := os.Getenv("COLLEGE_ALIASES_SOURCE")
	redisURL := os.Getenv("REDIS_URL")

	if players == "" || teams == "" {
		log.Fatal("PLAYERS_SOURCE and TEAMS_SOURCE are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	idx, err := attrindex.NewLoader(attrindex.WithTimeout(20*time.Second)).Load(ctx, attrindex.Sources{
		Players:        players,
		Teams:          teams,
		CollegeAliases: aliases,
	})
	if err != nil {
		log.Fatalf("index load error: %v", err)
	}
	nAthletes, nTeams := idx.Size()
	unlinkable := 0
	for _, a := range idx.Athletes() {
		if !a.Linkable() {
			unlinkable++
		}
	}
	fmt.Printf("athletes=%d teams=%d colleges=%d unlinkable=%d puzzle_candidates=%d\n",
		nAthletes, nTeams, len(idx.Colleges()), unlinkable, len(daily.Candidates(idx)))

	if redisURL == "" {
		log.Println("REDIS_URL not set; skipping store check")
		return
	}
	docs, err := docstore.NewFromURL(ctx, redisURL)
	if err != nil {
		log.Printf("store error: %v", err)
		return
	}
	defer docs.Close()

	today := daily.Key(time.Now())
	p, err := daily.NewStore(docs).Get(ctx, today)
	if err != nil {
		log.Printf("puzzle %q: %v", today, err)
		return
	}
	fmt.Printf("puzzle %q: %s:%s -> %s:%s plays=%d avg=%.2f\n",
		p.Date, p.StartType, p.StartID, p.EndType, p.EndID, p.Plays, p.AverageMoves())
}
