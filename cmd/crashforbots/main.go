package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Server   ServerCmd        `cmd:"" help:"Run the crash game server"`
	Bot      BotCmd           `cmd:"" help:"Connect automated bettors to a running server"`
	Spawn    SpawnCmd         `cmd:"" help:"Run a self-contained game with a croupier and bettors"`
	Simulate SimulateCmd      `cmd:"" help:"Run house economics simulations against synthetic bettors"`
	Verify   VerifyCmd        `cmd:"" help:"Check a revealed seed against its commitment and crash point"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("crashforbots"),
		kong.Description("Provably fair multiplier crash server for bot-vs-house play"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
