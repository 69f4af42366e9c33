package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/funbet/internal/simulator"
	"github.com/okian/funbet/pkg/logger"
)

const defaultRoundTimeout = 5 * time.Minute

func main() {
	def := simulator.DefaultConfig()
	var (
		baseURL      = flag.String("url", def.BaseURL, "Base URL of the service")
		admin        = flag.String("admin", def.AdminID, "Account id sent with the admin header")
		accounts     = flag.Int("accounts", def.Accounts, "Accounts to open")
		balance      = flag.Int64("balance", def.StartingBalance, "Minimum starting balance")
		workers      = flag.Int("workers", def.Workers, "Concurrent wager submitters")
		amend        = flag.Float64("amend", def.AmendRate, "Share of accounts that amend once")
		participants = flag.String("participants", strings.Join(def.Participants, ","), "Comma separated roster keys")
		winner       = flag.String("winner", "", "Winner key or tie")
		seed         = flag.Uint64("seed", 0, "Plan seed")
		timeout      = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		verbose      = flag.Bool("verbose", false, "Log every wager")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp(os.Stdout)
		return
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	cfg := def
	cfg.BaseURL = *baseURL
	cfg.AdminID = *admin
	cfg.Accounts = *accounts
	cfg.StartingBalance = *balance
	cfg.Workers = *workers
	cfg.AmendRate = *amend
	cfg.Participants = strings.Split(*participants, ",")
	cfg.Winner = *winner
	cfg.Seed = *seed
	cfg.Timeout = *timeout
	cfg.Verbose = *verbose

	if err := run(cfg); err != nil {
		os.Stderr.WriteString("Round failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(cfg simulator.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRoundTimeout)
	defer cancel()
	defer func() { _ = logger.Sync() }()

	rep, err := simulator.Run(ctx, cfg)
	simulator.PrintReport(os.Stdout, rep)
	return err
}
