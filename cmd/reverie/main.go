package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/reverie-ai/reverie/internal/cli"
)

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
