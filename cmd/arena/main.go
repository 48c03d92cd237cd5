package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"chess-tiers/config"
	"chess-tiers/engine"
)

type arenaConfig struct {
	TierA       engine.Tier
	TierB       engine.Tier
	Games       int
	Concurrency int
	MoveTime    time.Duration
	MaxPlies    int
}

func main() {
	var (
		tierA = flag.String("a", "medium", "tier of engine A")
		tierB = flag.String("b", "easy", "tier of engine B")
		cfg   arenaConfig
	)
	flag.IntVar(&cfg.Games, "games", 20, "number of games; colours alternate")
	flag.IntVar(&cfg.Concurrency, "concurrency", 4, "games played at once")
	flag.DurationVar(&cfg.MoveTime, "movetime", 200*time.Millisecond, "time budget per move")
	flag.IntVar(&cfg.MaxPlies, "maxplies", 300, "adjudicate a draw after this many plies")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if envCfg, err := config.Load(); err == nil {
		if l, err := config.NewLogger(envCfg.Logs); err == nil {
			log = l
		}
	}

	var err error
	if cfg.TierA, err = engine.ParseTier(*tierA); err != nil {
		log.Fatal().Err(err).Msg("engine A")
	}
	if cfg.TierB, err = engine.ParseTier(*tierB); err != nil {
		log.Fatal().Err(err).Msg("engine B")
	}
	log.Info().Interface("config", cfg).Msg("arena")

	score, err := run(context.Background(), cfg, engine.New(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("arena failed")
	}
	stat := computeStat(score.wins, score.losses, score.draws)
	log.Info().
		Str("a", cfg.TierA.String()).
		Str("b", cfg.TierB.String()).
		Int("wins", score.wins).
		Int("losses", score.losses).
		Int("draws", score.draws).
		Float64("elo", stat.eloDifference).
		Float64("los", stat.los).
		Msg("arena finished")
}
