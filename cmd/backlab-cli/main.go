package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"backlab/internal/backtest"
	"backlab/internal/domain"
	"backlab/internal/feed"
	"backlab/internal/store"
	"backlab/internal/strategy"
	"backlab/internal/util"
	"backlab/pkg/backlab"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: backlab-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  run        Run a backtest locally and print the result\n")
		fmt.Fprintf(os.Stderr, "  list       List persisted runs on a backlab-server\n")
		fmt.Fprintf(os.Stderr, "  status     Show backlab-server status\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("backlab-cli %s\n", version)

	case "run":
		if err := runCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "run: %v\n", err)
			os.Exit(1)
		}

	case "list":
		if err := listCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "list: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := statusCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

// loadStrategy resolves the -strategy flag: empty means the default
// rsi-reversion preset, a preset name resolves from the built-ins, and
// anything else is read as a strategy JSON file.
func loadStrategy(name string) (domain.Strategy, error) {
	presets := strategy.Builtins()
	if name == "" {
		name = "rsi-reversion"
	}
	if preset, ok := presets.Get(name); ok {
		return preset, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return domain.Strategy{}, fmt.Errorf("strategy %q is neither a preset (%v) nor a readable file: %w",
			name, presets.List(), err)
	}
	var strat domain.Strategy
	if err := json.Unmarshal(data, &strat); err != nil {
		return domain.Strategy{}, fmt.Errorf("parsing strategy file: %w", err)
	}
	return strat, nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		symbol    = fs.String("symbol", "BTC/USD", "trading pair")
		timeframe = fs.String("timeframe", util.DefaultTimeframe, "bar timeframe (e.g. 15m, 1h, 1d)")
		bars      = fs.Int("bars", 720, "number of synthetic bars")
		scenario  = fs.String("scenario", "sideways", "market scenario: bull, bear, sideways, volatile")
		seed      = fs.Int64("seed", 0, "random seed (0 = time-based)")
		balance   = fs.Float64("balance", 10000, "initial balance")
		stratFlag = fs.String("strategy", "", "strategy preset name or path to a strategy JSON file")
		csvPath   = fs.String("csv", "", "path to an OHLCV CSV file (uses the file data source)")
		dbPath    = fs.String("db", "", "SQLite path for persisting the run (empty = don't persist to a shared db)")
		logLevel  = fs.String("log-level", "warn", "log level")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	util.SetDefault(util.NewLogger(*logLevel, "text"))

	strat, err := loadStrategy(*stratFlag)
	if err != nil {
		return err
	}

	cfg := domain.BacktestConfig{
		Strategy:       strat,
		Symbol:         *symbol,
		Timeframe:      *timeframe,
		InitialBalance: *balance,
		DataSource:     domain.SourceSynthetic,
		Scenario:       domain.Scenario(*scenario),
		Bars:           *bars,
		Seed:           *seed,
	}

	var uploaded []domain.Bar
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			return err
		}
		uploaded, err = feed.ParseCSV(f)
		f.Close()
		if err != nil {
			return err
		}
		cfg.DataSource = domain.SourceFile
	}

	path := *dbPath
	if path == "" {
		dir, err := os.MkdirTemp("", "backlab-cli-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "runs.db")
	}
	runs, err := store.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer runs.Close()

	svc := backtest.NewService(feed.NewSyntheticFeed(), nil, runs)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run, err := svc.Run(ctx, cfg, uploaded)
	if err != nil {
		return err
	}

	printResult(run)
	return nil
}

func printResult(run *store.Run) {
	r := run.Result
	fmt.Printf("run           %s\n", run.ID)
	fmt.Printf("strategy      %s\n", run.Config.Strategy.Name)
	fmt.Printf("symbol        %s @ %s\n", run.Config.Symbol, run.Config.Timeframe)
	fmt.Printf("total return  %+.2f%%\n", r.TotalReturnPct)
	fmt.Printf("trades        %d (win rate %.1f%%)\n", r.TotalTrades, r.WinRatePct)
	fmt.Printf("max drawdown  %.2f%%\n", r.MaxDrawdownPct)
	fmt.Printf("sharpe        %.2f\n", r.SharpeRatio)
	if n := len(r.Equity); n > 0 {
		fmt.Printf("final equity  %.2f\n", r.Equity[n-1].Value)
	}
}

func serverAddr(fs *flag.FlagSet) *string {
	return fs.String("addr", "http://localhost:8080", "backlab-server base URL")
}

func listCommand(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	addr := serverAddr(fs)
	limit := fs.Int("limit", 20, "maximum runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runs, err := backlab.NewClient(*addr).ListRuns(context.Background(), *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%-28s  %-20s  %-10s  %+8.2f%%  %3d trades  %s\n",
			r.ID, r.Strategy, r.Symbol, r.TotalReturnPct, r.TotalTrades,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func statusCommand(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := serverAddr(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	running, err := backlab.NewClient(*addr).Running(context.Background())
	if err != nil {
		return err
	}
	if running {
		fmt.Println("status: backtest running")
	} else {
		fmt.Println("status: idle")
	}
	return nil
}
