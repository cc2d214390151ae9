// Command tb2048tui is an interactive line-mode 2048 session: WASD (or
// "left"/"right"/"up"/"down") to swipe, "n" to start a new game at a
// prompted size, "q" or an empty line at EOF to quit. It is grounded in
// original_source/src/TUI.cc's key-binding and reset-prompt shape and in
// melvinzhang-squava/ui_cli.go's bufio-driven human-input loop, but reads
// lines via github.com/chzyer/readline instead of raw keypresses (no
// ncurses dependency in the pack), with
// github.com/kballard/go-shellquote splitting the hidden ":" debug
// command line the way a shell would.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/play"
	"github.com/kbrew/tb2048/tablebase"
	"github.com/kbrew/tb2048/tablebase/memstore"
)

const defaultSize = 4
const defaultP4 = 0.2

func main() {
	logFile, err := os.OpenFile("tui.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tb2048tui: could not open tui.log:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()

	rl, err := readline.New("2048> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "tb2048tui:", err)
		os.Exit(1)
	}
	defer rl.Close()

	sess := newSession()
	sess.printWelcome()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("readline error")
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !sess.handle(line) {
			return
		}
	}
}

type session struct {
	game *play.Game
	// tiny inline tablebase, built on reset, used only for the hint display
	// on N=2 boards where construction is instant; larger boards never
	// get a hint since building their tables interactively would stall
	// the REPL.
	tb *tablebase.Tablebase
}

func newSession() *session {
	s := &session{}
	s.reset(defaultSize)
	return s
}

func (s *session) reset(size int) {
	g, err := play.NewGame(size, defaultP4)
	if err != nil {
		log.Error().Err(err).Int("size", size).Msg("failed to start game, falling back to default size")
		g, _ = play.NewGame(defaultSize, defaultP4)
	}
	s.game = g
	s.tb = nil
	if size == 2 {
		store := memstore.New(2)
		tb := tablebase.New(store, 2, defaultP4)
		if err := tb.Init(context.Background()); err == nil {
			s.tb = tb
		}
	}
}

func (s *session) printWelcome() {
	fmt.Println("Welcome to tb2048. Use WASD or left/right/up/down to swipe, n for a new game, q to quit.")
	s.printBoard()
}

func (s *session) printBoard() {
	fmt.Println(s.game.PrintGame())
	if s.tb != nil {
		if score := s.tb.Query(s.game.Board()); score != tablebase.Unknown {
			fmt.Printf("win probability from here: %.3f\n", score)
		}
	}
	if s.game.IsGameOver() {
		fmt.Println("GAME OVER! Use n for a new game, q to quit.")
	}
}

// handle processes one input line and reports whether the session should
// continue.
func (s *session) handle(line string) bool {
	if strings.HasPrefix(line, ":") {
		s.handleDebug(line[1:])
		return true
	}

	switch strings.ToLower(line) {
	case "q", "quit", "exit":
		return false
	case "n", "new":
		s.promptNewGameSize()
		return true
	case "w", "up":
		s.swipe(grid.Up)
	case "s", "down":
		s.swipe(grid.Down)
	case "a", "left":
		s.swipe(grid.Left)
	case "d", "right":
		s.swipe(grid.Right)
	default:
		log.Warn().Str("input", line).Msg("unrecognized input")
		fmt.Println("unrecognized input; try w/a/s/d, n, or q")
	}
	return true
}

func (s *session) swipe(dir grid.Dir) {
	if s.game.IsGameOver() {
		fmt.Println("game over; start a new game with n")
		return
	}
	if _, err := s.game.Swipe(dir); err != nil {
		log.Error().Err(err).Msg("swipe failed")
	}
	s.printBoard()
}

func (s *session) promptNewGameSize() {
	fmt.Printf("size (%d..%d, default %d): ", play.MinSize, play.MaxSize, defaultSize)
	var raw string
	if _, err := fmt.Scanln(&raw); err != nil {
		s.reset(defaultSize)
		s.printBoard()
		return
	}
	size, err := strconv.Atoi(raw)
	if err != nil || !play.IsValidGameSize(size) {
		log.Warn().Str("input", raw).Msg("bad size, clearing buffer")
		size = defaultSize
	}
	s.reset(size)
	s.printBoard()
}

// handleDebug parses a hidden ":"-prefixed debug command line with
// shell-style quoting rules.
func (s *session) handleDebug(cmd string) {
	fields, err := shellquote.Split(cmd)
	if err != nil || len(fields) == 0 {
		fmt.Println("usage: :state | :score")
		return
	}
	switch fields[0] {
	case "state":
		fmt.Println(s.game.Board().String())
	case "score":
		fmt.Println(s.game.GetScore())
	default:
		log.Warn().Strs("fields", fields).Msg("unrecognized debug command")
		fmt.Println("usage: :state | :score")
	}
}
