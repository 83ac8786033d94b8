package main

import (
	"os"

	"github.com/auxodev/dashclient/internal/command"
)

func main() {
	if err := command.New().Execute(); err != nil {
		os.Exit(1)
	}
}
