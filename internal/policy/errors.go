package policy

import (
	"errors"
	"fmt"
)

// ErrorKind names a class of policy computation failure.
type ErrorKind string

const (
	KindDataInsufficient      ErrorKind = "DATA_INSUFFICIENT"
	KindDegenerateConsumption ErrorKind = "DEGENERATE_CONSUMPTION"
	KindRunwayUndefined       ErrorKind = "RUNWAY_UNDEFINED"
	KindInvalidParameters     ErrorKind = "INVALID_PARAMETERS"
)

var (
	// ErrDataInsufficient is returned when the series has no records.
	ErrDataInsufficient = errors.New("no stock records for material")

	// ErrDegenerateConsumption marks metrics divided by a zero average consumption.
	ErrDegenerateConsumption = errors.New("average consumption is zero")

	// ErrRunwayUndefined marks a runway metric whose consumption divisor is zero.
	ErrRunwayUndefined = errors.New("runway divisor is zero")

	// ErrInvalidParameters is returned for a lead time or window below one.
	ErrInvalidParameters = errors.New("invalid policy parameters")
)

var kindSentinels = map[ErrorKind]error{
	KindDataInsufficient:      ErrDataInsufficient,
	KindDegenerateConsumption: ErrDegenerateConsumption,
	KindRunwayUndefined:       ErrRunwayUndefined,
	KindInvalidParameters:     ErrInvalidParameters,
}

// Error carries the kind, the affected metric (if any) and the material.
type Error struct {
	Kind     ErrorKind
	Metric   string
	Material string
	Reason   string
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Metric != "" {
		msg += " (" + e.Metric + ")"
	}
	if e.Material != "" {
		msg += fmt.Sprintf(" for %q", e.Material)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *Error) Unwrap() error {
	return kindSentinels[e.Kind]
}

// KindOf extracts the ErrorKind from err, or "" when err is not a policy error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

func newMetricError(kind ErrorKind, metric, material, reason string) *Error {
	return &Error{Kind: kind, Metric: metric, Material: material, Reason: reason}
}
