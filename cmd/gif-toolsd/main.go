// gif-toolsd serves the clip pipeline over HTTP.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	giftools "github.com/Simmo-os/gif-tools"
	"github.com/Simmo-os/gif-tools/server"
)

var (
	configPath = flag.String("config", "", "path to YAML config file")
	verbose    = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	giftools.SetLogger(logger)

	cfg := &server.Config{}
	if *configPath != "" {
		var err error
		cfg, err = server.LoadConfig(*configPath)
		if err != nil {
			logger.Error("loading config", "error", err)
			os.Exit(1)
		}
	}

	svc := server.New(cfg, logger)
	logger.Info("listening", "addr", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, svc.Router()); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
