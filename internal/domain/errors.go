package domain

import (
	"errors"
	"fmt"
)

// Kind classifies diagnosis failures so callers can decide whether to fix
// configuration, skip the input, or report a numerical problem.
type Kind int

const (
	// KindConfig marks invalid machine parameters or analysis settings.
	KindConfig Kind = iota + 1
	// KindInput marks malformed waveforms or impossible requests against them.
	KindInput
	// KindComputation marks numerically degenerate intermediate results.
	KindComputation
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindInput:
		return "input error"
	case KindComputation:
		return "computation error"
	default:
		return "unknown error"
	}
}

// Error is the structured error returned by the diagnosis core.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels usable with errors.Is; they match any *Error of the same kind.
var (
	ErrConfig      = &Error{Kind: KindConfig}
	ErrInput       = &Error{Kind: KindInput}
	ErrComputation = &Error{Kind: KindComputation}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, ErrInput) works for every input error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// ConfigErrorf builds a KindConfig error.
func ConfigErrorf(op, format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// InputErrorf builds a KindInput error.
func InputErrorf(op, format string, args ...any) error {
	return &Error{Kind: KindInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ComputationErrorf builds a KindComputation error.
func ComputationErrorf(op, format string, args ...any) error {
	return &Error{Kind: KindComputation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
