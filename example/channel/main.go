package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/giicoo/Dorsia-Electro"
)

func main() {
	flow, err := electro.Conf("../../config.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := electro.NewChannelSink("fanout", 32)
	defer closeBatches()

	go alertWorker("alerts", batches)

	if err := flow.Run(ctx, electro.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// alertWorker prints the summary of every report that needs maintenance.
func alertWorker(name string, batches <-chan []*electro.Report) {
	for batch := range batches {
		for _, r := range batch {
			if r.Recommendation == "routine" {
				continue
			}
			b, _ := json.Marshal(r.Summary())
			fmt.Printf("[%s] %s %s\n", name, time.Now().Format(time.RFC3339), b)
		}
	}
}
