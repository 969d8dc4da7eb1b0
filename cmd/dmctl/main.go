package main

import (
	"os"

	"github.com/chirpsocial/securedm-go/cmd/dmctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
