// Package csvsource loads recorded phase currents from CSV exports.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/giicoo/Dorsia-Electro/internal/domain"

	"go.uber.org/zap"
)

// Column names of the three phases.
var columns = map[domain.Phase]string{
	domain.PhaseR: "current_R",
	domain.PhaseS: "current_S",
	domain.PhaseT: "current_T",
}

// Loader concatenates the phase columns of several CSV files, in path order,
// into one waveform.
type Loader struct {
	SampleRate float64
	// SkipMissing logs and skips files that do not exist instead of failing.
	SkipMissing bool
	Log         *zap.Logger
}

// Load reads every path strictly.
func Load(paths []string, sampleRate float64) (domain.Waveform, error) {
	return Loader{SampleRate: sampleRate}.Load(paths)
}

// Glob rebuilds the numbered file list <prefix><i>.csv for i in
// [first, last], leaving out the excluded indices.
func Glob(prefix string, first, last int, exclude []int) []string {
	skip := make(map[int]bool, len(exclude))
	for _, i := range exclude {
		skip[i] = true
	}
	var paths []string
	for i := first; i <= last; i++ {
		if !skip[i] {
			paths = append(paths, prefix+strconv.Itoa(i)+".csv")
		}
	}
	return paths
}

func (l Loader) Load(paths []string) (domain.Waveform, error) {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	w := domain.Waveform{SampleRate: l.SampleRate}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			if l.SkipMissing && errors.Is(err, fs.ErrNotExist) {
				log.Warn("csv file not found, skipping", zap.String("path", p))
				continue
			}
			return domain.Waveform{}, fmt.Errorf("open %s: %w", p, err)
		}
		part, err := Read(f)
		_ = f.Close()
		if err != nil {
			return domain.Waveform{}, fmt.Errorf("%s: %w", p, err)
		}
		w.R = append(w.R, part.R...)
		w.S = append(w.S, part.S...)
		w.T = append(w.T, part.T...)
		log.Debug("csv file loaded", zap.String("path", p), zap.Int("rows", part.Len()))
	}
	if err := w.Validate(); err != nil {
		return domain.Waveform{}, err
	}
	return w, nil
}

// Read parses one CSV stream. The header must name all three phase
// columns; other columns are ignored.
func Read(r io.Reader) (domain.Waveform, error) {
	const op = "csv"
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Waveform{}, domain.InputErrorf(op, "missing header")
		}
		return domain.Waveform{}, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[domain.Phase]int, len(columns))
	for i, name := range header {
		for p, col := range columns {
			if strings.TrimSpace(name) == col {
				idx[p] = i
			}
		}
	}
	for _, p := range domain.Phases {
		if _, ok := idx[p]; !ok {
			return domain.Waveform{}, domain.InputErrorf(op, "missing column %s", columns[p])
		}
	}

	var w domain.Waveform
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Waveform{}, fmt.Errorf("read line %d: %w", line, err)
		}
		var v [3]float64
		for i, p := range domain.Phases {
			v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[idx[p]]), 64)
			if err != nil {
				return domain.Waveform{}, domain.InputErrorf(op, "line %d column %s: %v", line, columns[p], err)
			}
		}
		w.R = append(w.R, v[0])
		w.S = append(w.S, v[1])
		w.T = append(w.T, v[2])
	}
	return w, nil
}
