package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var version = "dev"

type Globals struct {
	Config string `help:"Path to config file (YAML or JSON)." short:"c" env:"STACKNOTIFY_CONFIG" type:"path"`
}

var CLI struct {
	Globals

	Handle  handleCmd  `cmd:"" help:"Deliver an SNS event (Lambda shape or SNS envelope) read from a file or stdin."`
	Render  renderCmd  `cmd:"" help:"Print the chat messages an SNS event would produce, without sending."`
	Serve   serveCmd   `cmd:"" help:"Run the SNS HTTP subscription endpoint."`
	Poll    pollCmd    `cmd:"" help:"Consume SNS notifications from an SQS queue."`
	Version versionCmd `cmd:"" help:"Print version information."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	kctx := kong.Parse(&CLI,
		kong.Name("stacknotify"),
		kong.Description("Forward AWS CodeBuild, CloudFormation and SNS failure events to Slack."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, Summary: true}),
	)
	if err := kctx.Run(&CLI.Globals); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
