// Package ledger implements the group-expense ledger core: share
// calculation, the pairwise debt matrix, settlements, and net positions.
// Everything in this package is pure; persistence and transport live in
// their own packages.
package ledger

import (
	"errors"

	"divvy/internal/core"
)

var ErrNoParticipants = errors.New("must have at least one participant")

// EqualSplit divides total evenly across the participants, in cents.
//
// Rounding policy (fixed, relied on by tests): every share except the last is
// total/n rounded half-up to the cent; the last participant absorbs the
// remainder so the shares always sum back to the total exactly. When the
// half-up share is so large that the remainder would go negative (sub-cent
// shares across many participants), the per-share rounding degrades to floor,
// which keeps every share non-negative without giving up exactness.
func EqualSplit(total core.Money, participants []string) (map[string]core.Money, error) {
	n := int64(len(participants))
	if n == 0 {
		return nil, ErrNoParticipants
	}
	if err := total.Validate(); err != nil {
		return nil, err
	}

	share := (2*total.Cents + n) / (2 * n) // half-up
	if total.Cents-share*(n-1) < 0 {
		share = total.Cents / n
	}
	last := total.Cents - share*(n-1)

	splits := make(map[string]core.Money, n)
	for i, id := range participants {
		if int64(i) == n-1 {
			splits[id] = core.Money{Cents: last}
		} else {
			splits[id] = core.Money{Cents: share}
		}
	}
	return splits, nil
}

// ValidateCustomSplit checks a caller-supplied split against the expense
// total. Every participant must appear as a key, shares must be
// non-negative, and the sum must reconcile with the total within the
// one-cent tolerance; otherwise a SplitMismatchError names both amounts.
func ValidateCustomSplit(total core.Money, participants []string, splits map[string]core.Money) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	for _, id := range participants {
		if _, ok := splits[id]; !ok {
			return &core.SplitMismatchError{Got: sumSplits(splits), Want: total}
		}
	}
	var sum int64
	for _, share := range splits {
		if share.Cents < 0 {
			return core.ErrInvalidAmount
		}
		sum += share.Cents
	}
	if diff := sum - total.Cents; diff > core.Tolerance || diff < -core.Tolerance {
		return &core.SplitMismatchError{Got: core.Money{Cents: sum}, Want: total}
	}
	return nil
}

func sumSplits(splits map[string]core.Money) core.Money {
	var sum int64
	for _, share := range splits {
		sum += share.Cents
	}
	return core.Money{Cents: sum}
}
