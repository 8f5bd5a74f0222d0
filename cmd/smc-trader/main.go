package main

import (
	"os"

	"github.com/mglavinic86/Ai-Trader-sub000/cmd/smc-trader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
