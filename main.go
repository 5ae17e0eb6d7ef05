package main

import (
	"log"

	"github.com/bayue48/pia-scrap/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
