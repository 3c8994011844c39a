package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpress/cmd/docpress/commands"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli := commands.CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("docpress"),
		kong.Description("Converts a Markdown documentation tree into HTML, e-book and PDF outputs."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	err := ctx.Run(&commands.Global{}, &cli)
	ctx.FatalIfErrorf(err)
}
