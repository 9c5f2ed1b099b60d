package main

import (
	"context"
	"os"
	"syscall"

	"charm.land/fang/v2"
)

const version = "0.4.0"

func main() {
	rootCmd := NewRootCmd()
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
