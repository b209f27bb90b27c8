// Package cmd implements the stocker command line application.
package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/etnz/stocker"
	"github.com/etnz/stocker/config"
	"github.com/etnz/stocker/logger"
	"github.com/etnz/stocker/quote"
	"github.com/etnz/stocker/store"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&tradeCmd{action: stocker.CmdBuy}, "transactions")
	c.Register(&tradeCmd{action: stocker.CmdSell}, "transactions")
	c.Register(&tradeCmd{action: stocker.CmdDividend}, "transactions")
	c.Register(&cashCmd{action: stocker.CmdDeposit}, "transactions")
	c.Register(&cashCmd{action: stocker.CmdWithdraw}, "transactions")
	c.Register(&amendCmd{}, "transactions")
	c.Register(&deleteCmd{}, "transactions")
	c.Register(&importCmd{}, "transactions")
	c.Register(&exportCmd{}, "transactions")

	c.Register(&positionsCmd{}, "reports")
	c.Register(&summaryCmd{}, "reports")
	c.Register(&todayCmd{}, "reports")
	c.Register(&statsCmd{}, "reports")

	c.Register(&snapshotCmd{}, "snapshots")
	c.Register(&historyCmd{}, "snapshots")
	c.Register(&serveCmd{}, "snapshots")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "stocker.toml", "Path to the TOML configuration file")

// defaultUser is the user of commands run without -u.
func defaultUser() string { return os.Getenv("STOCKER_USER") }

// app is what every command needs: the configuration, a logger and an engine
// on the database.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	db     *store.DB
	engine *stocker.Engine
}

// openApp loads the configuration and opens the engine on it. The caller must
// close the app.
func openApp() (*app, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return newApp(cfg, logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty}))
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	prices, err := newPriceSource(cfg, log)
	if err != nil {
		return nil, err
	}
	rates, err := newRateSource(cfg, log)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Storage.Path, log)
	if err != nil {
		return nil, err
	}
	engine, err := stocker.NewEngine(db.Ledgers(), db.Snapshots(), prices, rates, stocker.Options{
		BaseCurrency: cfg.BaseCurrency,
		Location:     loc,
		AllowShort:   cfg.AllowShort,
		PriceTimeout: cfg.Prices.GetTimeout(),
		PriceWorkers: cfg.Prices.Workers,
		Logger:       log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: log, db: db, engine: engine}, nil
}

func (a *app) Close() error { return a.db.Close() }

func newPriceSource(cfg *config.Config, log zerolog.Logger) (stocker.PriceSource, error) {
	var src *quote.HTTPSource
	switch cfg.Prices.Provider {
	case "static":
		return cfg.Prices.StaticPrices()
	case "eodhd":
		src = quote.EODHD(cfg.Prices.APIKey)
	default:
		src = quote.Yahoo()
	}
	if cfg.Prices.BaseURL != "" {
		src.URL = cfg.Prices.BaseURL
	}
	src.Client = &http.Client{Timeout: cfg.Prices.GetTimeout()}
	src.Limiter = quote.NewLimiter(cfg.Prices.RateLimit)
	src.Log = log
	return src, nil
}

func newRateSource(cfg *config.Config, log zerolog.Logger) (stocker.RateSource, error) {
	if cfg.Rates.Provider == "static" {
		return cfg.Rates.StaticRates()
	}
	src := quote.YahooRates()
	src.Client = &http.Client{}
	if cfg.Rates.Cache {
		src.Client = quote.NewDailyClient("", log)
	}
	src.Client.Timeout = cfg.Rates.GetTimeout()
	src.Log = log
	return src, nil
}

// run opens the app, calls fn and reports its error the usual way.
func run(ctx context.Context, what string, fn func(context.Context, *app) error) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stocker: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	if err := fn(ctx, a); err != nil {
		fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printJSON writes v as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
