package main

import (
	"log"

	"github.com/olusolaa/connector/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
