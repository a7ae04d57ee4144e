// cmd/backtest runs one RSI threshold backtest from the command line and
// prints a summary. Bars come from Yahoo Finance, a SQLite bar archive or a
// CSV file; with -db and -source=yahoo the fetched bars are archived too.
//
// Usage:
//
//	go run ./cmd/backtest -symbol=AAPL -buy=30 -sell=70 -years=5
//	go run ./cmd/backtest -symbol=AAPL -source=sqlite -db=data/bars.db
//	go run ./cmd/backtest -symbol=AAPL -source=csv -csv=AAPL.csv -chart=aapl.png
//	go run ./cmd/backtest -list -db=data/bars.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rsi-backtest/internal/backtest"
	"rsi-backtest/internal/indicator"
	"rsi-backtest/internal/marketdata/csvfile"
	"rsi-backtest/internal/marketdata/yahoo"
	"rsi-backtest/internal/model"
	"rsi-backtest/internal/report"
	sqlitestore "rsi-backtest/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	_ = godotenv.Load()

	// Flags
	symbol := flag.String("symbol", "", "Ticker symbol, e.g. AAPL")
	buy := flag.Int("buy", 30, "Go long when RSI falls below this level")
	sell := flag.Int("sell", 70, "Go short when RSI rises above this level")
	years := flag.Int("years", 5, "Lookback in years (×365 days)")
	window := flag.Int("window", indicator.DefaultRSIWindow, "RSI window")
	source := flag.String("source", "yahoo", "Bar source: yahoo|sqlite|csv")
	dbPath := flag.String("db", "", "SQLite bar archive (read with -source=sqlite, written with -source=yahoo)")
	csvPath := flag.String("csv", "", "CSV price table for -source=csv")
	chartPath := flag.String("chart", "", "Write the cumulative return chart to this PNG file")
	timeout := flag.Duration("timeout", 30*time.Second, "Market data fetch timeout")
	list := flag.Bool("list", false, "List the symbols archived in -db and exit")
	flag.Parse()

	if *list {
		if *dbPath == "" {
			log.Fatal("[backtest] -list needs -db")
		}
		if err := listArchive(context.Background(), *dbPath); err != nil {
			log.Fatalf("[backtest] list: %v", err)
		}
		return
	}

	if *symbol == "" {
		flag.Usage()
		os.Exit(2)
	}

	src, closeFn, err := openSource(*source, *dbPath, *csvPath)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runner := backtest.NewRunner(src, backtest.Options{
		Window:       *window,
		MaxYears:     100,
		FetchTimeout: *timeout,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	res, err := runner.Run(ctx, backtest.Params{Symbol: *symbol, BuyLevel: *buy, SellLevel: *sell, Years: *years})
	if err != nil {
		fmt.Fprintln(os.Stderr, backtest.UserMessage(err))
		log.Fatalf("[backtest] %v", err)
	}

	if *chartPath != "" {
		if err := writeChart(*chartPath, res); err != nil {
			log.Fatalf("[backtest] chart: %v", err)
		}
	}

	printSummary(res, *source, *chartPath)
}

func openSource(kind, dbPath, csvPath string) (model.BarSource, func(), error) {
	noop := func() {}
	switch kind {
	case "yahoo":
		var src model.BarSource = yahoo.New(yahoo.Config{AdjustedClose: true})
		if dbPath == "" {
			return src, noop, nil
		}
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
		if err != nil {
			return nil, noop, err
		}
		return sqlitestore.NewRecorder(src, w, nil), func() { w.Close() }, nil

	case "sqlite":
		if dbPath == "" {
			return nil, noop, errors.New("-source=sqlite needs -db")
		}
		r, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return nil, noop, err
		}
		return r, func() { r.Close() }, nil

	case "csv":
		if csvPath == "" {
			return nil, noop, errors.New("-source=csv needs -csv")
		}
		return csvfile.NewSource(csvPath, true), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown -source %q (want yahoo, sqlite or csv)", kind)
	}
}

func listArchive(ctx context.Context, dbPath string) error {
	r, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		return err
	}
	defer r.Close()

	counts, err := r.Symbols(ctx)
	if err != nil {
		return err
	}
	symbols := make([]string, 0, len(counts))
	for sym := range counts {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	fmt.Printf("%-15s %8s  %s\n", "SYMBOL", "BARS", "LAST")
	for _, sym := range symbols {
		last, err := r.LastDate(ctx, sym)
		if err != nil {
			return err
		}
		fmt.Printf("%-15s %8d  %s\n", sym, counts[sym], last.Format("2006-01-02"))
	}
	return nil
}

func writeChart(path string, res *backtest.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.RenderChart(f, "Cumulative Returns: "+res.Params.Symbol, res.Dates(), res.Curve()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(res *backtest.Result, source, chartPath string) {
	s := res.Summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbol:            %-16s ║\n", res.Params.Symbol)
	fmt.Printf("║  Source:            %-16s ║\n", source)
	fmt.Printf("║  RSI window:        %-16d ║\n", res.Window)
	fmt.Printf("║  Buy / sell:        %-16s ║\n", fmt.Sprintf("%d / %d", res.Params.BuyLevel, res.Params.SellLevel))
	fmt.Printf("║  From:              %-16s ║\n", res.Start.Format("2006-01-02"))
	fmt.Printf("║  To:                %-16s ║\n", res.End.AddDate(0, 0, -1).Format("2006-01-02"))
	fmt.Printf("║  Trading days:      %-16d ║\n", s.Days)
	fmt.Printf("║  Position changes:  %-16d ║\n", s.Trades)
	fmt.Printf("║  Average return:    %-16s ║\n", report.Percent(s.AverageReturn, 4))
	fmt.Printf("║  Cumulative return: %-16s ║\n", report.Percent(s.CumulativeReturn, 2))
	fmt.Printf("║  Daily std. dev.:   %-16s ║\n", report.Percent(s.StdDev, 4))
	fmt.Printf("║  Final position:    %-16s ║\n", res.FinalStance())
	if chartPath != "" {
		fmt.Printf("║  Chart:             %-16s ║\n", chartPath)
	}
	fmt.Println("╚══════════════════════════════════════╝")
}
