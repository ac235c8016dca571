package main

import (
	"os"

	"stalemap/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
