package main

import (
	"log"
	"os"

	"github.com/seantiz/athenamock/internal/api"
	"github.com/seantiz/athenamock/internal/config"
	"github.com/seantiz/athenamock/internal/engine"
	"github.com/seantiz/athenamock/internal/state"
	"github.com/seantiz/athenamock/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("athenamock: starting",
		"listen_addr", cfg.ListenAddr(),
		"process_interval", cfg.ProcessInterval.String(),
		"journal_path", cfg.JournalPath,
	)

	journal, err := store.NewSQLiteStore(cfg.JournalPath)
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer journal.Close()

	states := state.New()
	eng := engine.NewEngine(states, journal, cfg.ProcessInterval, logger)
	defer eng.Close()

	srv := api.NewServer(cfg.ListenAddr(), states, eng, journal, logger)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		eng.Close()
		journal.Close()
		os.Exit(1)
	}
}
