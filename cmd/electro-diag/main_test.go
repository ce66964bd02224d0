package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/giicoo/Dorsia-Electro"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/observability"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// writeCSV stores n balanced 60 Hz samples per file.
func writeCSV(t *testing.T, path string, n, offset int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,current_R,current_S,current_T\n")
	for i := 0; i < n; i++ {
		wt := 2 * math.Pi * 60 * float64(i+offset) / 25600
		fmt.Fprintf(&b, "%d,%.6f,%.6f,%.6f\n", i, 10*math.Sin(wt), 10*math.Sin(wt-2*math.Pi/3), 10*math.Sin(wt+2*math.Pi/3))
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

func runDiagnose(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := diagnoseCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiagnoseCommand(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "electro.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
log: {level: error}
analysis:
  frame_size: 8192
  park_samples: 1000
motors:
  pump-7:
    rpm: 1750
`), 0o600))
	for i := 1; i <= 3; i++ {
		writeCSV(t, filepath.Join(dir, fmt.Sprintf("current_%d.csv", i)), 6000, (i-1)*6000)
	}

	configPath = cfgFile
	t.Cleanup(func() { configPath = "" })

	out, err := runDiagnose(t, "--prefix", filepath.Join(dir, "current_"), "--from", "1", "--to", "4",
		"--exclude", "2", "--motor", "pump-7", "--format", "json")
	require.NoError(t, err)

	var r electro.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.Equal(t, "pump-7", r.MotorID)
	require.Equal(t, 12000, r.Samples)
	require.Equal(t, 1750.0, r.Parameters.RPM)
	require.Less(t, r.PhaseAsymmetry, 0.01)

	out, err = runDiagnose(t, "--csv", filepath.Join(dir, "current_1.csv"), "--csv", filepath.Join(dir, "current_3.csv"))
	require.NoError(t, err)
	require.Contains(t, out, "Motor diagnosis")
	require.Contains(t, out, "bearing")
	require.Contains(t, out, "Recommendation")
}

func TestDiagnoseCommandRejectsBadInput(t *testing.T) {
	configPath = ""
	_, err := runDiagnose(t)
	require.ErrorContains(t, err, "no input")

	_, err = runDiagnose(t, "--csv", "a.csv", "--prefix", "b_")
	require.ErrorContains(t, err, "mutually exclusive")

	_, err = runDiagnose(t, "--csv", "a.csv", "--format", "xml")
	require.ErrorContains(t, err, "--format")

	_, err = runDiagnose(t, "--csv", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "electro.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("wal: {dir: "+dir+"}\n"), 0o600))
	configPath = cfgFile
	t.Cleanup(func() { configPath = "" })

	cmd := validateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "looks good")

	cmd = validateCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--runtime"})
	require.ErrorContains(t, cmd.Execute(), "collector is required")
}

func TestFetchSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := observability.NewPromObs(observability.WithRegisterer(reg))
	obs.IncCounter(ports.MetricFramesDiagnosed, 3)
	obs.IncCounter(ports.MetricDLQ, 1)
	obs.SetGauge(ports.MetricQueueLength, 2)
	obs.ObserveReport(&electro.Report{
		MotorID: "m1",
		Modes: map[domain.FailureMode]domain.ModeResult{
			domain.ModeRotor: {ConditionAssessment: domain.ConditionAssessment{Condition: domain.ConditionAdvanced, Severity: 0.5}},
		},
	})

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	snap, err := fetchSnapshot(context.Background(), srv.URL)
	require.NoError(t, err)
	snap.At = at

	require.Equal(t, 3.0, snap.Diagnosed)
	require.Equal(t, 1.0, snap.DLQ)
	require.Equal(t, 2.0, snap.Queue)
	require.Equal(t, 2.0, snap.WorstLevel["m1"])
	require.Equal(t, "[2025-01-02T03:04:05Z] diagnosed=3 dropped=0 dlq=1 queue=2 wal_bytes=0 m1=advanced", snap.String())
}

func TestWriteTextPlainWhenCaptured(t *testing.T) {
	r := &electro.Report{
		MotorID:        "m1",
		Samples:        100000,
		SampleRate:     25600,
		Parameters:     electro.DefaultMachine(),
		Recommendation: domain.RecommendPlanned,
		Modes: map[domain.FailureMode]domain.ModeResult{
			domain.ModeBearing: {ConditionAssessment: domain.ConditionAssessment{Condition: domain.ConditionEarly, Severity: 0.12}},
			domain.ModeRotor:   {ConditionAssessment: domain.ConditionAssessment{Condition: domain.ConditionNormal}},
		},
	}

	var out bytes.Buffer
	require.NoError(t, writeText(&out, r))
	text := out.String()

	require.NotContains(t, text, "\x1b[")
	require.Contains(t, text, "Motor diagnosis m1")
	require.Contains(t, text, "100000 @ 25600 Hz")
	for _, m := range []string{"bearing", "rotor", "stator", "eccentricity"} {
		require.Contains(t, text, m)
	}
	require.Contains(t, text, "0.1200")
	require.Contains(t, text, "Recommendation: planned")
	require.Contains(t, text, domain.RecommendPlanned.Advice())
}
