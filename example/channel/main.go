package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jersme/enviro"
)

func main() {
	flow, err := enviro.Conf("../../enviro.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, readings, closeReadings := enviro.NewChannelSink("fanout", 32)
	defer closeReadings()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fanoutWorker("forward", readings)
	}()

	if err := flow.Run(ctx, enviro.StreamOutSink(sink)); err != nil {
		log.Fatalf("monitor error: %v", err)
	}
	closeReadings()
	wg.Wait()
}

func fanoutWorker(name string, readings <-chan enviro.Reading) {
	for r := range readings {
		fmt.Printf("[%s] %d fields at %s\n", name, len(r.Fields), r.Timestamp.Format(time.RFC3339))
	}
}
