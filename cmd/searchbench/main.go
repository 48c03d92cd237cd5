package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"

	"chess-tiers/board"
	"chess-tiers/engine"
)

func main() {
	depthFlag := flag.Int("depth", 5, "search depth in plies")
	repeatFlag := flag.Int("repeat", 1, "number of searches to run")
	fenFlag := flag.String("fen", "", "FEN to search (empty = startpos)")
	ttFlag := flag.Int("tt", engine.DefaultTTEntries, "transposition table entries")
	cpuProfile := flag.String("cpuprofile", "", "write CPU profile to file")
	memProfile := flag.String("memprofile", "", "write memory profile (heap) to file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if *depthFlag <= 0 {
		log.Fatal().Int("depth", *depthFlag).Msg("depth must be positive")
	}

	if *cpuProfile != "" {
		cpuFile, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer func() {
			pprof.StopCPUProfile()
			cpuFile.Close()
		}()
	}

	fen := board.Startpos
	if *fenFlag != "" {
		fen = *fenFlag
	}
	pos, err := board.FromFEN(fen)
	if err != nil {
		log.Fatal().Err(err).Msg("bad fen")
	}

	fmt.Printf("searchbench: fen=%q depth=%d repeat=%d\n", fen, *depthFlag, *repeatFlag)

	var total engine.SearchStats
	startAll := time.Now()
	for i := 0; i < *repeatFlag; i++ {
		// A fresh table per run, as a move request would get.
		searcher := engine.NewSearcher(nil, engine.NewTransTable(*ttFlag), nil)
		iterStart := time.Now()
		res := searcher.Search(pos, *depthFlag)
		iterElapsed := time.Since(iterStart)
		total.Add(res.Stats)

		fmt.Printf("iteration %d: bestmove %v score %d nodes %d time=%v\n",
			i+1, res.Move, res.Score, res.Stats.Nodes, iterElapsed)
	}
	totalElapsed := time.Since(startAll)
	nps := float64(total.Nodes) / totalElapsed.Seconds()
	fmt.Printf("total time: %v nodes: %d nps: %.0f\n", totalElapsed, total.Nodes, nps)
	log.Debug().EmbedObject(total).Msg("searchbench")

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create memory profile")
		}
		defer f.Close()

		runtime.GC() // get up-to-date heap info
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not write memory profile")
		}
	}
}
