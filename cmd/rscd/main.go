package main

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/skarsol/rscd/internal/config"
	"github.com/skarsol/rscd/internal/lsp"
	"github.com/skarsol/rscd/internal/server"
)

const (
	name    = "rscd"
	version = "0.2.0"
)

func main() {
	logLevel := pflag.String("log-level", "info", "log level: debug, info, warn, error")
	logFile := pflag.String("log-file", defaultLogFile(), "log file path")
	configFile := pflag.String("config", "rscd.yaml", "server config file")
	pflag.Parse()

	initLogging(*logLevel, *logFile)
	slog.Info("Logging initialized", "level", *logLevel)

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Warn("Could not load config, using defaults", "err", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Split(lsp.Split)

	state := server.NewState(cfg)
	writer := os.Stdout
	srv := server.NewServer(name, version, state, writer)

	for scanner.Scan() {
		msg := scanner.Bytes()
		method, contents, err := lsp.DecodeMessage(msg)
		if err != nil {
			slog.Error("ERROR decoding message", "err", err)
			continue
		}
		srv.HandleMessage(method, contents)
	}
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "rscd.log")
}

func initLogging(levelStr, filename string) {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logfile, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		panic("No log file")
	}

	handler := slog.NewTextHandler(logfile, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
