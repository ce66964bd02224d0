package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/giicoo/Dorsia-Electro"
)

// Reads current_R,current_S,current_T rows from stdin in blocks and hands
// each block to the publisher, which persists, diagnoses and prints it.
func main() {
	pub, err := electro.NewExternalPublisher(&electro.ExternalPublisherConfig{
		WAL: electro.WALConfig{Dir: "./data/external-wal"},
	}, func(batch []*electro.Report) error {
		for _, r := range batch {
			fmt.Printf("%s seq=%d recommendation=%s\n", r.MotorID, r.Seq, r.Recommendation)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	const block = 100_000
	rd := csv.NewReader(os.Stdin)
	w := electro.Waveform{SampleRate: 25600}
	for ctx.Err() == nil {
		rec, err := rd.Read()
		if err != nil {
			break
		}
		if len(rec) < 3 {
			continue
		}
		vals := make([]float64, 3)
		ok := true
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(rec[i], 64); err != nil {
				ok = false
			}
		}
		if !ok {
			continue
		}
		w.R, w.S, w.T = append(w.R, vals[0]), append(w.S, vals[1]), append(w.T, vals[2])
		if w.Len() == block {
			if err := pub.PublishWaveform("stdin", w); err != nil {
				log.Printf("publish: %v", err)
			}
			w = electro.Waveform{SampleRate: 25600}
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pub.Close(closeCtx); err != nil {
		log.Fatalf("close: %v", err)
	}
}
