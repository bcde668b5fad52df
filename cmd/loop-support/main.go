package main

import (
	"log"

	"github.com/Mundir-Doom/loop-support/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
