package main

import (
	"github.com/joho/godotenv"

	"fare-alerts/internal/cli"
)

func main() {
	// Telegram credentials may come from a local .env during development.
	_ = godotenv.Load()

	cli.Execute()
}
