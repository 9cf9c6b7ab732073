package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jersme/enviro/pkg/enviro"
)

func main() {
	flow, err := enviro.Conf("../../enviro.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(r enviro.Reading) error {
		fmt.Printf("%s", r.Timestamp.Format(time.RFC3339))
		for _, f := range r.Fields {
			fmt.Printf(" %s=%.2f", f.Name, f.Value)
		}
		fmt.Println()
		return nil
	}

	if err := flow.Run(ctx, enviro.StreamOutCallback("stdout", callback)); err != nil {
		log.Fatalf("monitor error: %v", err)
	}
}
