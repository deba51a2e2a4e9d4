package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/feedtools/readersync/internal/cli"
)

func main() {
	// optional .env next to the binary; real env wins
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[main] could not load .env: %v", err)
	}

	if err := cli.NewRootCmd().Execute(); err != nil {
		log.Fatalf("readersync: %v", err)
	}
}
