package main

import (
	"os"

	"github.com/guiyumin/mediasnap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
