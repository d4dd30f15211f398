package main

import (
	"os"

	"github.com/comigor/pocketchat/internal/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.L.Error("command failed", "error", err)
		os.Exit(1)
	}
}
