package electro

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giicoo/Dorsia-Electro/internal/app/diagnosis"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// buildFlow runs StreamOUT with stub adapters so no broker, database or WAL
// directory is touched.
func buildFlow(t *testing.T, f *Flow, in []StreamInOption, out ...StreamOutOption) (*EdgeRuntime, error) {
	t.Helper()
	in = append([]StreamInOption{
		StreamInCollector(&stubCollector{}),
		StreamInWAL(&stubWAL{}),
		StreamInObservability(&stubObservability{}),
	}, in...)
	out = append([]StreamOutOption{StreamOutSink(&stubSink{})}, out...)
	rt, err := f.StreamIN(in...).StreamOUT(out...)
	if rt != nil {
		t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	}
	return rt, err
}

func frameDiagnoser(t *testing.T, rt *EdgeRuntime) *diagnosis.FrameDiagnoser {
	t.Helper()
	fd, ok := rt.diagnoser.(*diagnosis.FrameDiagnoser)
	if !ok {
		t.Fatalf("expected a frame diagnoser, got %T", rt.diagnoser)
	}
	return fd
}

func TestFlowWiresAdapters(t *testing.T) {
	cfg := testConfig(t.TempDir())
	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("Config should return the loaded configuration")
	}

	col, sink, d := &stubCollector{}, &stubSink{}, &stubDiagnoser{}
	rt, err := flow.
		StreamIN(StreamInCollector(col), StreamInObservability(&stubObservability{})).
		StreamOUT(StreamOutSink(sink), StreamOutDiagnoser(d))
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if rt.collector != col || rt.sink != sink || rt.diagnoser != d {
		t.Fatalf("custom adapters not wired: %T %T %T", rt.collector, rt.sink, rt.diagnoser)
	}
	if rt.cfg != cfg {
		t.Fatalf("runtime should use the loaded config when nothing is overridden")
	}
}

func TestFlowMachineOverrides(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Motors = map[string]MachineParameters{"fan-1": DefaultMachine()}

	plant := DefaultMachine()
	plant.RPM = 1450
	pump := DefaultMachine()
	pump.RPM = 1750
	pump.Poles = 2

	flow, _ := ConfFromConfig(cfg)
	rt, err := buildFlow(t, flow, []StreamInOption{
		StreamInMachine(plant),
		StreamInMotors(map[string]MachineParameters{"pump-7": pump}),
	})
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}

	fd := frameDiagnoser(t, rt)
	if got := fd.Parameters("pump-7"); got != pump {
		t.Fatalf("pump-7 parameters = %+v", got)
	}
	if got := fd.Parameters("fan-1"); got != DefaultMachine() {
		t.Fatalf("configured motor lost: %+v", got)
	}
	if got := fd.Parameters("unknown"); got.RPM != 1450 {
		t.Fatalf("fallback machine rpm = %v, want 1450", got.RPM)
	}

	if cfg.Machine.RPM == 1450 || len(cfg.Motors) != 1 {
		t.Fatalf("loaded config was modified: machine %+v motors %v", cfg.Machine, cfg.Motors)
	}
}

func TestFlowFrameSize(t *testing.T) {
	cfg := testConfig(t.TempDir())
	flow, _ := ConfFromConfig(cfg)
	rt, err := buildFlow(t, flow, []StreamInOption{StreamInFrameSize(32768)})
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}
	if rt.cfg.Analysis.FrameSize != 32768 {
		t.Fatalf("frame size = %d", rt.cfg.Analysis.FrameSize)
	}
	if cfg.Analysis.FrameSize != 16384 {
		t.Fatalf("loaded config frame size changed to %d", cfg.Analysis.FrameSize)
	}

	// The configured window is 8192.
	flow, _ = ConfFromConfig(testConfig(t.TempDir()))
	if _, err := buildFlow(t, flow, []StreamInOption{StreamInFrameSize(4096)}); err == nil || !strings.Contains(err.Error(), "window") {
		t.Fatalf("expected window error, got %v", err)
	}
}

func TestFlowAnalysisOptions(t *testing.T) {
	frame := &Frame{MotorID: "m1", Seq: 1, Waveform: synthetic(8192)}

	// The configured subsample of 1000 fits the frame.
	flow, _ := ConfFromConfig(testConfig(t.TempDir()))
	rt, err := buildFlow(t, flow, nil)
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}
	if _, err := rt.diagnoser.DiagnoseFrame(frame); err != nil {
		t.Fatalf("configured analysis: %v", err)
	}

	o := DefaultAnalysisOptions()
	o.Window = 4096
	o.ParkSamples = 16384
	flow, _ = ConfFromConfig(testConfig(t.TempDir()))
	rt, err = buildFlow(t, flow, nil, StreamOutAnalysis(o))
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}
	_, err = frameDiagnoser(t, rt).DiagnoseFrame(frame)
	if !errors.Is(err, &domain.Error{Kind: domain.KindInput}) {
		t.Fatalf("expected the 16384 subsample to reject an 8192 frame, got %v", err)
	}

	// An explicit diagnoser wins over the calibration.
	d := &stubDiagnoser{}
	flow, _ = ConfFromConfig(testConfig(t.TempDir()))
	rt, err = buildFlow(t, flow, nil, StreamOutAnalysis(o), StreamOutDiagnoser(d))
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}
	if rt.diagnoser != d {
		t.Fatalf("expected explicit diagnoser, got %T", rt.diagnoser)
	}
}

func TestFlowRejectsInvalidOverrides(t *testing.T) {
	badMachine := DefaultMachine()
	badMachine.Slip = 1.5
	tooLarge := DefaultAnalysisOptions()
	tooLarge.ParkSamples = 1 << 20
	badWindow := DefaultAnalysisOptions()
	badWindow.Window = 1

	tests := []struct {
		name string
		in   []StreamInOption
		out  []StreamOutOption
		want string
	}{
		{"bad machine", []StreamInOption{StreamInMachine(badMachine)}, nil, "machine"},
		{"bad motor", []StreamInOption{StreamInMotors(map[string]MachineParameters{"p1": badMachine})}, nil, "motors.p1"},
		{"empty motor id", []StreamInOption{StreamInMotors(map[string]MachineParameters{"": DefaultMachine()})}, nil, "empty motor id"},
		{"zero frame size", []StreamInOption{StreamInFrameSize(0)}, nil, "frame size"},
		{"invalid calibration", nil, []StreamOutOption{StreamOutAnalysis(badWindow)}, "window"},
		{"subsample above frame", nil, []StreamOutOption{StreamOutAnalysis(tooLarge)}, "park subsample"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, _ := ConfFromConfig(testConfig(t.TempDir()))
			_, err := buildFlow(t, flow, tt.in, tt.out...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "electro.yaml")
	data := []byte("analysis:\n  frame_size: 16384\n  park_samples: 4000\nwal:\n  dir: " + t.TempDir() + "\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flow, err := Conf(path, WithFlowOptions(WithDiagnoser(&stubDiagnoser{})))
	if err != nil {
		t.Fatalf("Conf: %v", err)
	}
	if flow.Config().Analysis.FrameSize != 16384 || len(flow.opts) != 1 {
		t.Fatalf("unexpected flow: frame %d, %d options", flow.Config().Analysis.FrameSize, len(flow.opts))
	}

	if _, err := Conf(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFlowRunStopsWithContext(t *testing.T) {
	flow, _ := ConfFromConfig(testConfig(t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := flow.StreamIN(
		StreamInCollector(&stubCollector{}),
		StreamInObservability(&stubObservability{}),
	).Run(ctx, StreamOutCallback("cb", func([]*Report) error { return nil }))
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
}

func TestNilFlow(t *testing.T) {
	var f *Flow
	if f.Config() != nil || f.StreamIN() != nil || f.Options() != nil {
		t.Fatalf("nil flow should stay nil")
	}
	if _, err := f.StreamOUT(); err == nil {
		t.Fatalf("expected error from nil flow")
	}
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
