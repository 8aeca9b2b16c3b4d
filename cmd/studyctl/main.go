package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"studysphere/internal/client"
	"studysphere/internal/config"
	"studysphere/internal/logger"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: logger.FormatText,
		Output: os.Stderr,
	})

	cli := &commandLine{
		baseURL:   config.GetEnvOrDefault("STUDYSPHERE_URL", "http://localhost:8080"),
		tokenPath: config.GetEnvOrDefault("STUDYSPHERE_TOKEN_FILE", defaultTokenPath()),
		out:       os.Stdout,
		in:        os.Stdin,
		logger:    log,
	}

	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "error: %s\n", client.Notice(err))
			log.Debug("command failed", "error", err)
		}
		os.Exit(1)
	}
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".studysphere-token"
	}
	return filepath.Join(dir, "studysphere", "token.json")
}
