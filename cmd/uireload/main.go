package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/grovetools/uireload/cli"
	"github.com/grovetools/uireload/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		_ = cli.NewErrorHandler(verbose, os.Stderr).Handle(err)
		os.Exit(1)
	}
}
