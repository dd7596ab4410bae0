package main

import (
	"os"

	"trade-analytics-go/cmd/analytics/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
