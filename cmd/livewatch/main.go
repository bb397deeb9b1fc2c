package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/config"
	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/live"
	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/log"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	origin := flag.String("origin", "", "Override the API origin (e.g. http://127.0.0.1:8080)")
	logFile := flag.String("log-file", "", "Write logs to this file (discarded otherwise)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *origin != "" {
		cfg.API.Origin = *origin
	}

	// The alternate screen owns stdout/stderr, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Output: logOut})

	channel := live.NewChannel(cfg.API.Origin, cfg.API.PageOrigin,
		live.WithReconnectDelay(cfg.Live.ReconnectDelay))

	p := tea.NewProgram(New(channel), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	channel.Close()
}
