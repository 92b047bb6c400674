package main

import (
	"os"

	"github.com/H01mes/qoober-node-1/cli/app"
)

func main() {
	ctl := app.New()

	if err := ctl.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
