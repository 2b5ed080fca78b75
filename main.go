package main

import (
	"os"

	"pubsub2inbox/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
