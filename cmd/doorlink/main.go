package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/doorlink/internal/app"
	"github.com/buckleypaul/doorlink/internal/config"
	"github.com/buckleypaul/doorlink/internal/link"
	"github.com/buckleypaul/doorlink/internal/logging"
	"github.com/buckleypaul/doorlink/internal/pages"
	"github.com/buckleypaul/doorlink/internal/store"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(cwd)

	logger, logFile, err := logging.Open(cfg.LogPath(cwd), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.Info().Str("transport", cfg.Transport).Str("peer", cfg.PeerAddress).Msg("doorlink starting")

	st := store.New(config.Dir(cwd))

	// Settings edit cfg in place, so every connect picks up the latest values.
	newLink := func() (pages.Link, error) {
		dialer, err := link.NewDialer(cfg.Transport, cfg.SerialBaudRate)
		if err != nil {
			return nil, err
		}
		opts := cfg.LinkOptions()
		opts.Logger = &logger
		return link.New(cfg.Peer(), dialer, opts), nil
	}

	control := pages.NewControlPage(&cfg, st, newLink, logger)
	defer control.Close()

	pageMap := map[app.PageID]app.Page{
		app.ControlPage:  control,
		app.HistoryPage:  pages.NewHistoryPage(st),
		app.SettingsPage: pages.NewSettingsPage(&cfg, cwd),
	}

	model := app.New(pageMap, &cfg, cwd)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("program exited")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
