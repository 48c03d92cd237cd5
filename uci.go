package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chess-tiers/board"
	"chess-tiers/config"
	"chess-tiers/engine"
	"chess-tiers/external"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Logs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	opts := []engine.Option{
		engine.WithMaxThink(cfg.Engine.MaxThink),
		engine.WithTTEntries(cfg.Engine.TTEntries),
		engine.WithLogger(logger),
	}
	var ext *external.Adapter
	if cfg.External.Enabled() {
		ext = external.NewAdapter(external.Config{
			Path:  cfg.External.Path,
			Args:  cfg.External.Args,
			Retry: cfg.External.Retry,
			Depth: cfg.External.Depth,
		}, logger)
		opts = append(opts, engine.WithExternal(ext, cfg.External.Timeout))
	}
	eng := engine.New(opts...)
	eng.SetDifficulty(cfg.Engine.Tier)

	u := newUCI(os.Stdout, eng, cfg.Engine, logger)
	if ext != nil {
		u.games = ext
	}
	u.loop(os.Stdin)

	if ext != nil {
		if err := ext.Close(); err != nil {
			logger.Warn().Err(err).Msg("external-close")
		}
	}
}

type uci struct {
	out   io.Writer
	eng   *engine.Engine
	cfg   config.EngineConfig
	log   zerolog.Logger
	games interface{ EndGame(string) }

	pos  board.Position
	game string
}

func newUCI(out io.Writer, eng *engine.Engine, cfg config.EngineConfig, logger zerolog.Logger) *uci {
	return &uci{
		out:  out,
		eng:  eng,
		cfg:  cfg,
		log:  logger,
		pos:  board.StartPosition(),
		game: uuid.NewString(),
	}
}

func (u *uci) println(a ...any) {
	fmt.Fprintln(u.out, a...)
}

func (u *uci) loop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		tokens := strings.Fields(line)
		if len(tokens) == 0 { // ignore blank lines
			continue
		}
		switch strings.ToLower(tokens[0]) {
		case "uci":
			u.println("id name chess-tiers")
			u.println("id author chess-tiers")
			names := make([]string, len(engine.Tiers))
			for i, t := range engine.Tiers {
				names[i] = "var " + t.String()
			}
			u.println("option name Difficulty type combo default", u.eng.Difficulty(), strings.Join(names, " "))
			u.println("uciok")
		case "isready":
			u.println("readyok")
		case "ucinewgame":
			if u.games != nil {
				u.games.EndGame(u.game)
			}
			u.game = uuid.NewString()
			u.pos = board.StartPosition()
		case "position":
			u.position(tokens[1:])
		case "go":
			u.goCmd(tokens[1:])
		case "setoption":
			u.setOption(tokens[1:])
		case "eval":
			u.println("info string eval", engine.Evaluate(u.pos))
		case "stop":
			// go answers before reading the next command.
		case "quit":
			return
		default:
			u.println("info string Unknown command:", line)
		}
	}
}

func (u *uci) position(tokens []string) {
	if len(tokens) == 0 {
		u.println("info string Malformed position command")
		return
	}
	var (
		pos  board.Position
		rest []string
	)
	switch strings.ToLower(tokens[0]) {
	case "startpos":
		pos = board.StartPosition()
		rest = tokens[1:]
	case "fen":
		end := len(tokens)
		for i, tok := range tokens {
			if strings.ToLower(tok) == "moves" {
				end = i
				break
			}
		}
		var err error
		pos, err = board.FromFEN(strings.Join(tokens[1:end], " "))
		if err != nil {
			u.println("info string Invalid fen position:", err)
			return
		}
		rest = tokens[end:]
	default:
		u.println("info string Invalid position subcommand")
		return
	}

	if len(rest) > 0 && strings.ToLower(rest[0]) == "moves" {
		for _, mv := range rest[1:] {
			next, err := pos.ApplyUCI(mv)
			if err != nil {
				u.println("info string Move", mv, "not found for position", pos.FEN())
				break
			}
			pos = next
		}
	}
	u.pos = pos
}

func (u *uci) goCmd(tokens []string) {
	var wTime, bTime, wInc, bInc, moveTime, depth int
	for i := 0; i < len(tokens); i++ {
		var target *int
		switch strings.ToLower(tokens[i]) {
		case "wtime":
			target = &wTime
		case "btime":
			target = &bTime
		case "winc":
			target = &wInc
		case "binc":
			target = &bInc
		case "movetime":
			target = &moveTime
		case "depth":
			target = &depth
		case "movestogo", "nodes", "mate":
			i++
			continue
		case "infinite", "ponder":
			continue
		default:
			u.println("info string Unknown go subcommand", tokens[i])
			continue
		}
		if i+1 >= len(tokens) {
			u.println("info string Malformed go command option", tokens[i])
			break
		}
		i++
		n, err := strconv.Atoi(tokens[i])
		if err != nil {
			u.println("info string Malformed go command option; could not convert", tokens[i-1])
			continue
		}
		*target = n
	}

	remaining, inc := wTime, wInc
	if u.pos.SideToMove() == board.Black {
		remaining, inc = bTime, bInc
	}
	budget := u.cfg.MoveTime
	switch {
	case moveTime > 0:
		budget = ms(moveTime)
	case remaining > 0:
		budget = engine.MoveBudget(u.pos, ms(remaining), ms(inc))
	}

	ctx := engine.WithGame(context.Background(), u.game)
	start := time.Now()
	var (
		m  board.Move
		ok bool
	)
	if depth > 0 {
		p := engine.ProfileFor(u.eng.Difficulty())
		p.Depth = depth
		m, ok = u.eng.PickMoveWithProfile(ctx, u.pos, p, budget)
	} else {
		m, ok = u.eng.BestMove(ctx, u.pos, budget)
	}
	u.log.Debug().
		Str("game", u.game).
		Dur("budget", budget).
		Dur("elapsed", time.Since(start)).
		Str("move", m.String()).
		Msg("go")
	if !ok {
		u.println("bestmove 0000")
		return
	}
	u.println("bestmove", m)
}

func (u *uci) setOption(tokens []string) {
	// setoption name <name...> [value <value...>]
	var name, value []string
	field := &name
	for _, tok := range tokens {
		switch strings.ToLower(tok) {
		case "name":
			field = &name
		case "value":
			field = &value
		default:
			*field = append(*field, tok)
		}
	}
	switch strings.ToLower(strings.Join(name, " ")) {
	case "difficulty":
		tier, err := engine.ParseTier(strings.Join(value, " "))
		if err != nil {
			u.println("info string", err)
			return
		}
		u.eng.SetDifficulty(tier)
	default:
		u.println("info string Unknown option", strings.Join(name, " "))
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
