package ste

import (
	"errors"
	"fmt"

	"github.com/zmlAEQ/silent-threshold/internal/silent/kzg"
)

var (
	// ErrSetupInsufficient is the kzg sentinel, re-exported so callers of this
	// package need not import kzg to match it.
	ErrSetupInsufficient = kzg.ErrSetupInsufficient
	// ErrInvalidCommitteeSize covers n that is not a power of two (or below 2)
	// and party ids outside [0, n).
	ErrInvalidCommitteeSize = errors.New("ste: invalid committee size")
	// ErrThresholdViolation is returned by AggDec when no more than t real
	// parties are selected.
	ErrThresholdViolation = errors.New("ste: threshold violation")
	// ErrDimension reports inputs whose lengths or indices disagree with the
	// committee.
	ErrDimension = errors.New("ste: dimension mismatch")
	// ErrInvalidThreshold is returned for t outside [1, n-2].
	ErrInvalidThreshold = errors.New("ste: invalid threshold")
)

// CheckThreshold reports whether t is usable for a committee of n. AggDec
// needs more than t of the n-1 real parties, so t is at most n-2.
func CheckThreshold(t, n int) error {
	if t < 1 || t > n-2 {
		return fmt.Errorf("%w: t=%d, n=%d", ErrInvalidThreshold, t, n)
	}
	return nil
}
