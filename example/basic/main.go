package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jersme/enviro"
)

func main() {
	flow, err := enviro.Conf("../../enviro.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil {
		log.Fatalf("monitor exited: %v", err)
	}
}
