package main

import (
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user supplied flag values prior to translation into the
// server's runtime components.
type cliConfig struct {
	listenAddr  string
	logLevel    string
	configPath  string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("chatrelay", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}

	fs.StringVar(&cfg.listenAddr, "listen", ":3567", "TCP listen address")
	fs.StringVar(&cfg.logLevel, "log.level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.configPath, "config", "", "Path to an optional YAML configuration file")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log.level %q", cfg.logLevel)
	}

	return cfg, nil
}
