package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"stacknotify/internal/app"
	"stacknotify/internal/config"
)

func main() {
	a, err := app.New(os.Getenv(config.EnvConfigPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	lambda.Start(handler(a))
}

// handler returns the aggregated batch error so Lambda reports the invocation
// as failed when any record could not be delivered.
func handler(a *app.App) func(context.Context, events.SNSEvent) error {
	return func(ctx context.Context, ev events.SNSEvent) error {
		_, err := a.Handle(ctx, ev)
		return err
	}
}
