// Command tb2048 builds and queries a 2048 endgame tablebase from the
// command line: batch construction with periodic checkpointing, a
// one-shot query against an already-built table, and a debug mode that
// builds the table with the recursive algorithm instead of the iterative
// one, for use on a small board; that mode does not compare the two
// algorithms' results. Flag handling uses plain top-level flag.* vars, no
// subcommand framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kbrew/tb2048/config"
	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/tablebase"
	"github.com/kbrew/tb2048/tablebase/memstore"
	"github.com/kbrew/tb2048/tablebase/sqlstore"
)

var (
	n          = flag.Int("n", 4, "board side length (2..8)")
	p4         = flag.Float64("p4", 0.1, "probability a spawned tile is a displayed-4")
	storeKind  = flag.String("store", "memory", "store backend: memory or sqlite")
	dbPath     = flag.String("db", "", "sqlite database path (defaults to 2048_tb_<n>-<p4>.sqlite)")
	batchSize  = flag.Int("batch", 50000, "queue pops per checkpoint in batch mode")
	maxDepth   = flag.Int("maxdepth", 0, "edge-generation depth cutoff, 0 for unlimited")
	mode       = flag.String("mode", "build", "build | query | recursive-check")
	queryState = flag.String("state", "", "comma-separated tile exponents for -mode=query")
	verbose    = flag.Bool("v", false, "debug-level logging")
)

func main() {
	flag.Parse()
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("tb2048 exited with an error")
	}
}

func run() error {
	if *n < 2 || *n > 8 {
		return fmt.Errorf("n must be in 2..8, got %d", *n)
	}

	cfg := config.New()
	cfg.Set(config.KeyBoardSize, *n)
	cfg.Set(config.KeyP4, *p4)
	cfg.Set(config.KeyStoreKind, *storeKind)
	cfg.Set(config.KeyBatchSize, *batchSize)
	cfg.Set(config.KeyMaxDepth, *maxDepth)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tb := tablebase.New(store, *n, float32(*p4))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch *mode {
	case "build":
		return runBuild(ctx, tb, cfg)
	case "query":
		return runQuery(tb)
	case "recursive-check":
		return runRecursiveCheck(ctx, tb)
	default:
		return fmt.Errorf("unknown -mode %q", *mode)
	}
}

func openStore(cfg *config.Config) (tablebase.Store, error) {
	switch cfg.StoreKind() {
	case "memory":
		return memstore.New(cfg.BoardSize()), nil
	case "sqlite":
		path := *dbPath
		if path == "" {
			path = fmt.Sprintf("2048_tb_%d-%.2f.sqlite", cfg.BoardSize(), cfg.P4())
		}
		return sqlstore.Open(path, cfg.BoardSize(), sqlstore.Options{
			PageCacheMemoryFraction: cfg.PageCacheFraction(),
		})
	default:
		return nil, fmt.Errorf("unknown -store %q (want memory or sqlite)", cfg.StoreKind())
	}
}

func runBuild(ctx context.Context, tb *tablebase.Tablebase, cfg *config.Config) error {
	start := time.Now()
	for {
		done, err := tb.PartialInit(ctx, cfg.BatchSize(), cfg.MaxDepth())
		if err != nil {
			return fmt.Errorf("construction failed: %w", err)
		}
		if done {
			break
		}
		log.Info().Dur("elapsed", time.Since(start)).Msg("checkpoint reached")
	}
	log.Info().Dur("total", time.Since(start)).Msg("tablebase construction finished")
	return nil
}

func runQuery(tb *tablebase.Tablebase) error {
	if *queryState == "" {
		return fmt.Errorf("-mode=query requires -state")
	}
	g, err := parseState(*n, *queryState)
	if err != nil {
		return err
	}
	score := tb.Query(g)
	if score == tablebase.Unknown {
		fmt.Println("unknown: state not resolved in this table")
		return nil
	}
	fmt.Printf("s_final = %.6f\n", score)
	if dir, ok := tb.BestMove(g); ok {
		fmt.Printf("best move: %s\n", dir)
	}
	return nil
}

func runRecursiveCheck(ctx context.Context, tb *tablebase.Tablebase) error {
	log.Warn().Msg("recursive-check builds the whole table again with naive recursion; only use this on a small board")
	return tb.BuildRecursive(ctx)
}

func parseState(n int, s string) (*grid.Grid, error) {
	g := grid.New(n)
	idx := 0
	cur := uint(0)
	haveDigit := false
	r, c := 0, 0
	writeAndAdvance := func() {
		g.WriteTile(r, c, cur)
		cur, haveDigit = 0, false
		idx++
		c++
		if c == n {
			c = 0
			r++
		}
	}
	for _, ch := range s {
		switch {
		case ch >= '0' && ch <= '9':
			cur = cur*10 + uint(ch-'0')
			haveDigit = true
		case ch == ',':
			writeAndAdvance()
		default:
			return nil, fmt.Errorf("parseState: unexpected character %q", ch)
		}
	}
	if haveDigit {
		writeAndAdvance()
	}
	if idx != n*n {
		return nil, fmt.Errorf("parseState: expected %d tile values, got %d", n*n, idx)
	}
	return g, nil
}
