package main

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chess-tiers/board"
	"chess-tiers/engine"
)

// openings are short starting lines so that games between the same tiers
// do not all repeat.
var openings = [][]string{
	{"e2e4", "e7e5"},
	{"e2e4", "c7c5"},
	{"d2d4", "d7d5"},
	{"d2d4", "g8f6", "c2c4", "e7e6"},
	{"g1f3", "d7d5"},
	{"c2c4", "e7e5"},
}

type gameInfo struct {
	id             string
	number         int
	opening        []string
	engineAIsWhite bool
}

type gameResult struct {
	gameInfo gameInfo
	result   board.Result
	winner   board.Color
	plies    int
	comment  string
}

type tally struct {
	wins, losses, draws int
}

func run(ctx context.Context, cfg arenaConfig, eng *engine.Engine, log zerolog.Logger) (tally, error) {
	g, ctx := errgroup.WithContext(ctx)

	gameInfos := make(chan gameInfo)
	gameResults := make(chan gameResult)

	g.Go(func() error {
		defer close(gameInfos)
		for i := 0; i < cfg.Games; i++ {
			info := gameInfo{
				id:             uuid.NewString(),
				number:         i + 1,
				opening:        openings[(i/2)%len(openings)],
				engineAIsWhite: i%2 == 0,
			}
			select {
			case gameInfos <- info:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var score tally
	g.Go(func() error {
		score = showResults(gameResults, log)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < max(cfg.Concurrency, 1); i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return playGames(ctx, cfg, eng, gameInfos, gameResults)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(gameResults)
		return nil
	})

	err := g.Wait()
	return score, err
}

func playGames(ctx context.Context, cfg arenaConfig, eng *engine.Engine, gameInfos <-chan gameInfo, gameResults chan<- gameResult) error {
	for info := range gameInfos {
		res, err := playGame(ctx, cfg, eng, info)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case gameResults <- res:
		}
	}
	return nil
}

func playGame(ctx context.Context, cfg arenaConfig, eng *engine.Engine, info gameInfo) (gameResult, error) {
	pos := board.StartPosition()
	for _, mv := range info.opening {
		var err error
		if pos, err = pos.ApplyUCI(mv); err != nil {
			return gameResult{}, err
		}
	}
	ctx = engine.WithGame(ctx, info.id)
	res := gameResult{gameInfo: info}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if r := pos.Result(); r != board.Ongoing {
			res.result = r
			res.comment = r.String()
			// The side to move is the one that got mated.
			res.winner = pos.SideToMove() ^ 1
			return res, nil
		}
		if res.plies >= cfg.MaxPlies {
			res.result = board.FiftyMoves
			res.comment = "adjudicated"
			return res, nil
		}
		tier := cfg.TierB
		if (pos.SideToMove() == board.White) == info.engineAIsWhite {
			tier = cfg.TierA
		}
		m, ok := eng.PickMove(ctx, pos, tier, cfg.MoveTime)
		if !ok {
			// Result already covers positions without moves.
			return res, nil
		}
		pos = pos.Child(m)
		res.plies++
	}
}
