package main

import (
	"os"

	"github.com/1broseidon/floatdrop/internal/daemon"
)

var version = "dev"

func main() {
	daemon.Version = version
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
