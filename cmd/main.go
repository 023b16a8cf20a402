package main

import (
	"log/slog"
	"os"

	"chat-relay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("chat-relay failed", "err", err)
		os.Exit(1)
	}
}
