package main

import (
	"os"

	"memsplit/cmd/memsplit/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
