package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/specblocks/cmd/specblocks/commands"
	ferrors "git.home.luguber.info/inful/specblocks/internal/foundation/errors"
	"git.home.luguber.info/inful/specblocks/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(&cli,
		kong.Name("specblocks"),
		kong.Description("Compile an OpenAPI document into HTML fragments and discovery indexes"),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
		kong.Bind(global),
	)

	if err := parser.Run(&cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
