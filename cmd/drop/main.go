package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/citychests/vault-drop/pkg/drop"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := logrus.StandardLogger().WithField("type", "cmd/drop")

	env, err := drop.LoadEnvironment(drop.DefaultEnvFile)
	if err != nil {
		logger.Error(err)
		return 1
	}
	drop.ConfigureLogging(env, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := drop.NewOrchestrator(env, drop.WithEnvConfigs()).Run(ctx)
	if err != nil {
		logger.WithError(err).Error("drop failed")
		return 1
	}

	for _, line := range result.Lines() {
		fmt.Println(line)
	}
	return 0
}
