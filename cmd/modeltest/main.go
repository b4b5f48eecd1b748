package main

import (
	"os"

	"github.com/porthorian/modeltest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
