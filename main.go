package main

import (
	"os"

	"github.com/resumer-app/resumer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
