package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestReportCapturedAtOmittedWhenUnset(t *testing.T) {
	raw, err := json.Marshal(&DiagnosisReport{AnalyzerVersion: "v1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "captured_at") {
		t.Fatalf("zero capture time should be omitted: %s", raw)
	}

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err = json.Marshal(&DiagnosisReport{CapturedAt: at})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"captured_at":"2025-03-01T12:00:00Z"`) {
		t.Fatalf("capture time missing: %s", raw)
	}
}
