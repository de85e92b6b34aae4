package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := App.RunContext(ctx, os.Args); err != nil {
		logrus.WithError(err).Error("tripwire failed")
		stop()
		os.Exit(1)
	}
}
