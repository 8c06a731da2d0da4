package main

import (
	"os"

	"github.com/sapcc/capsule-operator/internal/cmd"
)

func main() {
	err := cmd.RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
