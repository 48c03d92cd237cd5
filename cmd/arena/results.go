package main

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"chess-tiers/board"
)

func showResults(gameResults <-chan gameResult, log zerolog.Logger) tally {
	var t tally
	for r := range gameResults {
		switch {
		case r.result != board.Checkmate:
			t.draws++
		case (r.winner == board.White) == r.gameInfo.engineAIsWhite:
			t.wins++
		default:
			t.losses++
		}
		stat := computeStat(t.wins, t.losses, t.draws)
		log.Info().
			Int("game", r.gameInfo.number).
			Str("result", gameResultString(r)).
			Str("comment", r.comment).
			Int("plies", r.plies).
			Str("score", scoreString(t)).
			Float64("fraction", stat.winningFraction).
			Float64("elo", stat.eloDifference).
			Float64("los", stat.los).
			Msg("game finished")
	}
	return t
}

func scoreString(t tally) string {
	return fmt.Sprintf("%d - %d - %d", t.wins, t.losses, t.draws)
}

type gameStatistics struct {
	winningFraction float64
	eloDifference   float64
	los             float64
}

// https://www.chessprogramming.org/Match_Statistics
func computeStat(wins, losses, draws int) gameStatistics {
	games := wins + losses + draws
	if games == 0 {
		return gameStatistics{winningFraction: 0.5, los: 0.5}
	}
	winningFraction := (float64(wins) + 0.5*float64(draws)) / float64(games)
	eloDifference := -math.Log(1/winningFraction-1) * 400 / math.Ln10
	los := 0.5
	if wins+losses > 0 {
		los = 0.5 + 0.5*math.Erf(float64(wins-losses)/math.Sqrt(2*float64(wins+losses)))
	}
	return gameStatistics{
		winningFraction: winningFraction,
		eloDifference:   eloDifference,
		los:             los,
	}
}

func gameResultString(r gameResult) string {
	if r.result != board.Checkmate {
		return "1/2-1/2"
	}
	if r.winner == board.White {
		return "1-0"
	}
	return "0-1"
}
