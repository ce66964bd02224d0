package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/giicoo/Dorsia-Electro/pkg/electro"
)

func main() {
	flow, err := electro.Conf("../../config.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []*electro.Report) error {
		for _, r := range batch {
			s := r.Summary()
			fmt.Printf("%s motor=%s seq=%d bearing=%s rotor=%s stator=%s eccentricity=%s advice=%s\n",
				r.CapturedAt.Format(time.RFC3339Nano),
				r.MotorID,
				r.Seq,
				s.BearingCondition,
				s.RotorCondition,
				s.StatorCondition,
				s.EccentricityCondition,
				s.Recommendation,
			)
		}
		return nil
	}

	// pump-7 runs a two-pole motor; its bearing faults show up at other frequencies.
	pump := electro.DefaultMachine()
	pump.Poles = 2
	pump.RPM = 3540

	analysis := electro.DefaultAnalysisOptions()
	analysis.Detector.Tolerance = 1.5

	err = flow.
		StreamIN(electro.StreamInMotors(map[string]electro.MachineParameters{"pump-7": pump})).
		Run(ctx,
			electro.StreamOutAnalysis(analysis),
			electro.StreamOutCallback("stdout", callback),
		)
	if err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
