package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

var reportColumns = []string{
	"motor_id", "captured_at", "seq", "analyzer_version",
	"bearing_condition", "bearing_severity",
	"rotor_condition", "rotor_severity",
	"stator_condition", "stator_severity",
	"eccentricity_condition", "eccentricity_severity",
	"phase_asymmetry", "dq_ratio", "recommendation", "detail",
}

// TimescaleSink stores one row per diagnosis report.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

// EnsureSchema creates the report table if it does not exist and, when the
// timescaledb extension is installed, turns it into a hypertable on
// captured_at. Plain PostgreSQL keeps the ordinary table.
func (t *TimescaleSink) EnsureSchema(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	motor_id TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	seq BIGINT NOT NULL,
	analyzer_version TEXT NOT NULL,
	bearing_condition TEXT NOT NULL,
	bearing_severity DOUBLE PRECISION NOT NULL,
	rotor_condition TEXT NOT NULL,
	rotor_severity DOUBLE PRECISION NOT NULL,
	stator_condition TEXT NOT NULL,
	stator_severity DOUBLE PRECISION NOT NULL,
	eccentricity_condition TEXT NOT NULL,
	eccentricity_severity DOUBLE PRECISION NOT NULL,
	phase_asymmetry DOUBLE PRECISION NOT NULL,
	dq_ratio DOUBLE PRECISION NOT NULL,
	recommendation TEXT NOT NULL,
	detail JSONB,
	PRIMARY KEY (motor_id, captured_at, seq)
)`, t.tableName))
	if err != nil {
		return err
	}

	var timescale bool
	if err := t.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')`).Scan(&timescale); err != nil {
		return fmt.Errorf("detect timescaledb: %w", err)
	}
	if !timescale {
		return nil
	}
	if _, err := t.db.ExecContext(ctx,
		`SELECT create_hypertable($1::regclass, 'captured_at', if_not_exists => TRUE)`, t.tableName); err != nil {
		return fmt.Errorf("create hypertable %s: %w", t.tableName, err)
	}
	return nil
}

func (t *TimescaleSink) WriteBatch(reports []*domain.DiagnosisReport) error {
	if len(reports) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (")
	b.WriteString(strings.Join(reportColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(reports)*len(reportColumns))
	for i, r := range reports {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := range reportColumns {
			if c > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c+1)
		}
		b.WriteString(")")

		detail, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal report detail: %w", err)
		}
		s := r.Summary()
		args = append(args,
			r.MotorID,
			r.CapturedAt,
			r.Seq,
			r.AnalyzerVersion,
			string(s.BearingCondition), s.BearingSeverity,
			string(s.RotorCondition), s.RotorSeverity,
			string(s.StatorCondition), s.StatorSeverity,
			string(s.EccentricityCondition), s.EccentricitySeverity,
			r.PhaseAsymmetry,
			r.DQRatio,
			string(r.Recommendation),
			detail,
		)
	}

	// Replayed frames produce the same key, so re-inserts are no-ops.
	b.WriteString(" ON CONFLICT (motor_id, captured_at, seq) DO NOTHING")

	_, err := t.db.Exec(b.String(), args...)
	return err
}

var _ ports.Sink = (*TimescaleSink)(nil)
