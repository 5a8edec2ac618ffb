package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/agentfoundry/agentfactory/internal/interface/cli"
)

func main() {
	// Optional .env for API keys; absence is fine
	_ = godotenv.Load()

	if err := cli.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
