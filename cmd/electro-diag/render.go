package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/giicoo/Dorsia-Electro"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

func writeJSON(w io.Writer, r *electro.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var conditionColor = map[electro.Condition]lipgloss.Color{
	domain.ConditionNormal:   lipgloss.Color("42"),
	domain.ConditionEarly:    lipgloss.Color("229"),
	domain.ConditionAdvanced: lipgloss.Color("208"),
	domain.ConditionCritical: lipgloss.Color("196"),
}

// reportStyles is bound to the output writer so colours are dropped when the
// report is piped or captured.
type reportStyles struct {
	title lipgloss.Style
	key   lipgloss.Style
	value lipgloss.Style
	head  lipgloss.Style
	cell  lipgloss.Style
	box   lipgloss.Style
}

func newReportStyles(w io.Writer) reportStyles {
	r := lipgloss.NewRenderer(w)
	return reportStyles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		key:   r.NewStyle().Foreground(lipgloss.Color("245")),
		value: r.NewStyle().Foreground(lipgloss.Color("229")),
		head:  r.NewStyle().Bold(true).Padding(0, 1),
		cell:  r.NewStyle().Padding(0, 1),
		box:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("86")).Padding(0, 1),
	}
}

// keyValues renders label/value pairs as a borderless two-column table.
func (s reportStyles) keyValues(rows ...[]string) string {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
		BorderColumn(false).
		Rows(rows...).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return s.key.PaddingRight(2)
			}
			return s.value
		}).
		Render()
}

// writeText prints the operator summary: machine data, mode verdicts and
// the maintenance advice.
func writeText(w io.Writer, r *electro.Report) error {
	s := newReportStyles(w)
	p := r.Parameters

	title := "Motor diagnosis"
	if r.MotorID != "" {
		title += " " + r.MotorID
	}

	machine := s.keyValues(
		[]string{"Supply", fmt.Sprintf("%.2f Hz", p.SupplyFrequency)},
		[]string{"Speed", fmt.Sprintf("%.0f rpm (slip %.4f, %d poles)", p.RPM, p.Slip, p.Poles)},
		[]string{"Bearing", p.Bearing.Model},
		[]string{"Samples", fmt.Sprintf("%d @ %.0f Hz", r.Samples, r.SampleRate)},
	)

	f := r.Frequencies
	freqs := s.keyValues(
		[]string{"rotor", fmt.Sprintf("%.2f Hz", f.Rotor)},
		[]string{"cage", fmt.Sprintf("%.2f Hz", f.Cage)},
		[]string{"BPFO", fmt.Sprintf("%.2f Hz", f.BPFO)},
		[]string{"BPFI", fmt.Sprintf("%.2f Hz", f.BPFI)},
		[]string{"BSF", fmt.Sprintf("%.2f Hz", f.BSF)},
	)

	order := []electro.FailureMode{electro.ModeBearing, electro.ModeRotor, electro.ModeStator, electro.ModeEccentricity}
	modes := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.key).
		Headers("Mode", "Condition", "Severity", "Detections")
	for _, m := range order {
		res := r.Modes[m]
		modes.Row(string(m), string(res.Condition), fmt.Sprintf("%.4f", res.Severity), fmt.Sprintf("%d", len(res.Detections)))
	}
	modes.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return s.head
		}
		if col == 1 && row >= 0 && row < len(order) {
			if c, ok := conditionColor[r.Modes[order[row]].Condition]; ok {
				return s.cell.Foreground(c)
			}
		}
		return s.cell
	})

	phases := s.keyValues(
		[]string{"Phase RMS", fmt.Sprintf("R %.3f A  S %.3f A  T %.3f A", r.PhaseRMS.R, r.PhaseRMS.S, r.PhaseRMS.T)},
		[]string{"Phase asymmetry", fmt.Sprintf("%.2f %%", r.PhaseAsymmetry*100)},
		[]string{"d-q ratio", fmt.Sprintf("%.4f", r.DQRatio)},
	)

	advice := s.box.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render(fmt.Sprintf("Recommendation: %s", r.Recommendation)),
		r.Recommendation.Advice(),
	))

	out := lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render(title),
		machine,
		"",
		s.title.Render("Characteristic frequencies"),
		freqs,
		"",
		modes.Render(),
		"",
		phases,
		"",
		advice,
	)
	_, err := fmt.Fprintln(w, out)
	return err
}
