package main

import (
	"os"

	"github.com/corestream/tensorsink/cmd/tensorsink/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
