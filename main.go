package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env before any command reads the environment
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
