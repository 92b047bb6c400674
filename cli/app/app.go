package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli"

	"github.com/H01mes/qoober-node-1/cli/tx"
	"github.com/H01mes/qoober-node-1/pkg/config"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "qoober-node\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a qoober-node instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "qoober-node"
	ctl.Version = config.Version
	ctl.Usage = "Qoober node tooling"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, tx.NewCommands()...)
	return ctl
}
