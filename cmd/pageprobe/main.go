package main

import (
	"os"

	"github.com/networkteam/pageprobe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
