package main

import (
	"log"

	"github.com/crewbase/crewbase/cmd/serverrun"
)

func main() {
	if err := serverrun.Run(); err != nil {
		log.Fatal(err)
	}
}
